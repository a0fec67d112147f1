package di

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopforge/api/internal/handlers"
	"github.com/shopforge/api/internal/payments"
	"github.com/shopforge/api/internal/platform/cache"
	"github.com/shopforge/api/internal/platform/config"
	pfirestore "github.com/shopforge/api/internal/platform/firestore"
	"github.com/shopforge/api/internal/platform/jobs"
	"github.com/shopforge/api/internal/platform/requestctx"
	"github.com/shopforge/api/internal/repositories"
	repofirestore "github.com/shopforge/api/internal/repositories/firestore"
	"github.com/shopforge/api/internal/services"
)

// Repositories bundles the storage contracts the service layer relies upon.
type Repositories struct {
	Parties  repositories.PartyRepository
	Products repositories.ProductRepository
	Orders   repositories.OrderRepository
	Payments repositories.PaymentRepository
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog   services.CatalogService
	Validator services.CartValidator
	Resolver  services.PartyResolver
	Orders    services.OrderService
	Payments  services.PaymentService
}

// Container wires repositories, services, and supporting infrastructure for
// runtime use.
type Container struct {
	Config       config.Config
	Provider     *pfirestore.Provider
	Repositories Repositories
	Services     Services
	Health       *handlers.HealthHandlers

	logger       *zap.Logger
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
	redisClient  *redis.Client
}

// NewContainer constructs the runtime dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config:   cfg,
		Provider: pfirestore.NewProvider(cfg.Firestore),
		logger:   logger,
	}

	if err := c.buildRepositories(); err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}
	if err := c.buildServices(ctx); err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}
	c.buildHealth()

	return c, nil
}

func (c *Container) buildRepositories() error {
	parties, err := repofirestore.NewPartyRepository(c.Provider)
	if err != nil {
		return fmt.Errorf("di: party repository: %w", err)
	}
	products, err := repofirestore.NewProductRepository(c.Provider)
	if err != nil {
		return fmt.Errorf("di: product repository: %w", err)
	}
	orders, err := repofirestore.NewOrderRepository(c.Provider)
	if err != nil {
		return fmt.Errorf("di: order repository: %w", err)
	}
	pays, err := repofirestore.NewPaymentRepository(c.Provider)
	if err != nil {
		return fmt.Errorf("di: payment repository: %w", err)
	}

	c.Repositories = Repositories{
		Parties:  parties,
		Products: products,
		Orders:   orders,
		Payments: pays,
	}
	return nil
}

func (c *Container) buildServices(ctx context.Context) error {
	eventLog := eventLogger(c.logger)

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: c.Repositories.Products,
		Cache:    c.buildProductCache(),
		Logger:   eventLog,
	})
	if err != nil {
		return fmt.Errorf("di: catalog service: %w", err)
	}

	validator, err := services.NewCartValidator(services.CartValidatorDeps{Catalog: catalog})
	if err != nil {
		return fmt.Errorf("di: cart validator: %w", err)
	}

	resolver, err := services.NewPartyResolver(services.PartyResolverDeps{
		Parties: c.Repositories.Parties,
		Logger:  eventLog,
	})
	if err != nil {
		return fmt.Errorf("di: party resolver: %w", err)
	}

	publisher, err := c.buildEventPublisher(ctx)
	if err != nil {
		return err
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    c.Repositories.Orders,
		Resolver:  resolver,
		Validator: validator,
		Events:    publisher,
		Logger:    eventLog,
	})
	if err != nil {
		return fmt.Errorf("di: order service: %w", err)
	}

	gateway, err := c.buildGateway(eventLog)
	if err != nil {
		return err
	}

	paySvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Payments:        c.Repositories.Payments,
		Orders:          c.Repositories.Orders,
		Gateway:         gateway,
		GatewayTimeout:  c.Config.Gateway.Timeout,
		DefaultCurrency: c.Config.Gateway.Currency,
		Events:          publisher,
		Logger:          eventLog,
	})
	if err != nil {
		return fmt.Errorf("di: payment service: %w", err)
	}

	c.Services = Services{
		Catalog:   catalog,
		Validator: validator,
		Resolver:  resolver,
		Orders:    orders,
		Payments:  paySvc,
	}
	return nil
}

// buildProductCache selects Redis when an address is configured and falls
// back to the in-process cache otherwise.
func (c *Container) buildProductCache() cache.ProductCache {
	if c.Config.Redis.Addr == "" {
		return cache.NewMemoryProductCache(c.Config.Catalog.CacheTTL)
	}
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	return cache.NewRedisProductCache(c.redisClient, c.Config.Catalog.CacheTTL)
}

// buildEventPublisher returns nil when no topic is configured; services treat
// a nil publisher as events disabled.
func (c *Container) buildEventPublisher(ctx context.Context) (services.OrderEventPublisher, error) {
	if c.Config.PubSub.OrderEventTopic == "" {
		return nil, nil
	}
	projectID := c.Config.PubSub.ProjectID
	if projectID == "" {
		projectID = c.Config.Firestore.ProjectID
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("di: pubsub client: %w", err)
	}
	c.pubsubClient = client
	c.pubsubTopic = client.Topic(c.Config.PubSub.OrderEventTopic)

	publisher, err := jobs.NewPubSubEventPublisher(c.pubsubTopic)
	if err != nil {
		return nil, fmt.Errorf("di: event publisher: %w", err)
	}
	return publisher, nil
}

// buildGateway returns nil when no Stripe key is configured; intent creation
// is rejected by the payment service in that case.
func (c *Container) buildGateway(eventLog func(ctx context.Context, event string, fields map[string]any)) (payments.Gateway, error) {
	if c.Config.Stripe.APIKey == "" {
		return nil, nil
	}
	gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
		APIKey: c.Config.Stripe.APIKey,
		Logger: eventLog,
	})
	if err != nil {
		return nil, fmt.Errorf("di: stripe gateway: %w", err)
	}
	return gateway, nil
}

func (c *Container) buildHealth() {
	opts := []handlers.HealthOption{
		handlers.WithReadinessProbe("firestore", func(ctx context.Context) error {
			_, err := c.Provider.Client(ctx)
			return err
		}),
	}
	if c.redisClient != nil {
		opts = append(opts, handlers.WithReadinessProbe("redis", func(ctx context.Context) error {
			return c.redisClient.Ping(ctx).Err()
		}))
	}
	c.Health = handlers.NewHealthHandlers(opts...)
}

// Close releases clients owned by the container.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsubTopic != nil {
		c.pubsubTopic.Stop()
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub: %w", err))
		}
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.Provider != nil {
		if err := c.Provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("firestore: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Container) closeQuietly(ctx context.Context) {
	if err := c.Close(ctx); err != nil {
		c.logger.Warn("container cleanup failed", zap.Error(err))
	}
}

// eventLogger adapts zap to the map-based service logging contract. The
// request-scoped logger on the context wins so service events keep their
// request_id and trace_id correlation; the container logger covers calls
// outside a request.
func eventLogger(fallback *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
