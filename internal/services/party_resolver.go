package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	domain "github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/repositories"
)

const partyIDPrefix = "prt_"

var (
	// ErrPartyInvalidInput signals the caller provided invalid resolution data.
	ErrPartyInvalidInput = errors.New("party: invalid input")
	// ErrPartyNotFound indicates the referenced party does not exist.
	ErrPartyNotFound = errors.New("party: not found")
	// ErrPartyConflict indicates a concurrent create could not be resolved.
	ErrPartyConflict = errors.New("party: conflict")
)

// PartyResolverDeps bundles collaborators required to construct the resolver.
type PartyResolverDeps struct {
	Parties     repositories.PartyRepository
	Clock       func() time.Time
	IDGenerator func() string
	// CredentialGenerator mints the opaque marker stored on guest parties.
	CredentialGenerator func() string
	Logger              func(ctx context.Context, event string, fields map[string]any)
}

type partyResolver struct {
	parties       repositories.PartyRepository
	clock         func() time.Time
	newID         func() string
	newCredential func() string
	logger        func(context.Context, string, map[string]any)
}

// NewPartyResolver wires dependencies into a concrete PartyResolver implementation.
func NewPartyResolver(deps PartyResolverDeps) (PartyResolver, error) {
	if deps.Parties == nil {
		return nil, errors.New("party resolver: party repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	credGen := deps.CredentialGenerator
	if credGen == nil {
		credGen = func() string {
			return "guest:" + uuid.NewString()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &partyResolver{
		parties: deps.Parties,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:         idGen,
		newCredential: credGen,
		logger:        logger,
	}, nil
}

// Resolve returns the purchasing party for the command, never mutating an
// existing party with request data.
func (r *partyResolver) Resolve(ctx context.Context, cmd ResolvePartyCommand) (Party, error) {
	if partyID := strings.TrimSpace(cmd.PartyID); partyID != "" {
		party, err := r.parties.FindByID(ctx, partyID)
		if err != nil {
			return Party{}, r.mapRepositoryError(err)
		}
		return party, nil
	}

	email := normalizeEmail(cmd.Email)
	if email == "" {
		return Party{}, fmt.Errorf("%w: party id or email is required", ErrPartyInvalidInput)
	}

	party, err := r.parties.FindByEmail(ctx, email)
	if err == nil {
		return party, nil
	}
	if !isRepoNotFound(err) {
		return Party{}, r.mapRepositoryError(err)
	}

	guest := domain.Party{
		ID:          partyIDPrefix + r.newID(),
		Email:       email,
		DisplayName: strings.TrimSpace(cmd.DisplayName),
		Phone:       strings.TrimSpace(cmd.Phone),
		Credential:  r.newCredential(),
		CreatedAt:   r.clock(),
	}

	if err := r.parties.CreateParty(ctx, guest); err != nil {
		if isRepoConflict(err) {
			// Another request registered the email first; hand back the winner.
			winner, lookupErr := r.parties.FindByEmail(ctx, email)
			if lookupErr != nil {
				return Party{}, r.mapRepositoryError(lookupErr)
			}
			return winner, nil
		}
		return Party{}, r.mapRepositoryError(err)
	}

	r.logger(ctx, "party.guest.created", map[string]any{
		"partyId": guest.ID,
	})

	return guest, nil
}

func (r *partyResolver) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPartyNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPartyConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("party: repository unavailable: %w", err)
		}
	}

	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
