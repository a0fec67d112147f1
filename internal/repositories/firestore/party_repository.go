package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shopforge/api/internal/domain"
	pfirestore "github.com/shopforge/api/internal/platform/firestore"
)

const (
	partyCollection      = "parties"
	partyEmailCollection = "partyEmails"
)

// PartyRepository persists purchasing identities in Firestore. Email
// uniqueness is enforced with an index document keyed by the normalised
// email, created in the same transaction as the party itself.
type PartyRepository struct {
	base     *pfirestore.BaseRepository[partyDocument]
	emails   *pfirestore.BaseRepository[partyEmailDocument]
	provider *pfirestore.Provider
}

// NewPartyRepository constructs a Firestore-backed party repository.
func NewPartyRepository(provider *pfirestore.Provider) (*PartyRepository, error) {
	if provider == nil {
		return nil, errors.New("party repository requires firestore provider")
	}
	return &PartyRepository{
		base:     pfirestore.NewBaseRepository[partyDocument](provider, partyCollection, nil),
		emails:   pfirestore.NewBaseRepository[partyEmailDocument](provider, partyEmailCollection, nil),
		provider: provider,
	}, nil
}

// FindByID loads a party by its identifier.
func (r *PartyRepository) FindByID(ctx context.Context, partyID string) (domain.Party, error) {
	doc, err := r.base.Get(ctx, partyID)
	if err != nil {
		return domain.Party{}, err
	}
	return toDomainParty(doc.ID, doc.Data), nil
}

// FindByEmail resolves a party through the email index document.
func (r *PartyRepository) FindByEmail(ctx context.Context, email string) (domain.Party, error) {
	key := normalizeEmail(email)
	if key == "" {
		return domain.Party{}, pfirestore.NotFoundError("partyEmails.get", errors.New("email is empty"))
	}

	index, err := r.emails.Get(ctx, key)
	if err != nil {
		return domain.Party{}, err
	}
	return r.FindByID(ctx, index.Data.PartyID)
}

// CreateParty writes the party and its email index document atomically. A
// concurrent create for the same email surfaces as a conflict.
func (r *PartyRepository) CreateParty(ctx context.Context, party domain.Party) error {
	if strings.TrimSpace(party.ID) == "" {
		return errors.New("party id is required")
	}
	key := normalizeEmail(party.Email)
	if key == "" {
		return errors.New("party email is required")
	}

	partyRef, err := r.base.DocumentRef(ctx, party.ID)
	if err != nil {
		return err
	}
	emailRef, err := r.emails.DocumentRef(ctx, key)
	if err != nil {
		return err
	}

	doc := fromDomainParty(party)
	return r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(emailRef, partyEmailDocument{PartyID: party.ID}); err != nil {
			return err
		}
		return tx.Create(partyRef, doc)
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type partyDocument struct {
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	Phone       string    `firestore:"phone,omitempty"`
	Credential  string    `firestore:"credential"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type partyEmailDocument struct {
	PartyID string `firestore:"partyId"`
}

func toDomainParty(id string, doc partyDocument) domain.Party {
	return domain.Party{
		ID:          id,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		Phone:       doc.Phone,
		Credential:  doc.Credential,
		CreatedAt:   doc.CreatedAt,
	}
}

func fromDomainParty(party domain.Party) partyDocument {
	return partyDocument{
		Email:       normalizeEmail(party.Email),
		DisplayName: party.DisplayName,
		Phone:       party.Phone,
		Credential:  party.Credential,
		CreatedAt:   party.CreatedAt,
	}
}
