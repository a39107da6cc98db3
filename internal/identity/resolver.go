// Package identity resolves the acting player from transport-supplied
// certificate material, or falls back to anonymous identity. All inputs are
// explicit arguments; nothing is read from ambient process state.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpavlenko/cryptoquest/internal/common"
	"github.com/dpavlenko/cryptoquest/internal/logging"
	"github.com/dpavlenko/cryptoquest/internal/storage"
)

// Kind classifies how the player was identified.
type Kind int

const (
	// AnonymousUnnamed means no certificate and no supplied name.
	AnonymousUnnamed Kind = iota
	// Anonymous means no certificate; the player supplied a name.
	Anonymous
	// CertUnlinked means a certificate is present but not linked to a user.
	CertUnlinked
	// Certified means the certificate fingerprint maps to a durable user.
	Certified
)

// Identity is the resolved acting player.
type Identity struct {
	Kind     Kind
	Username string
}

// MinNameLen is the minimum username length accepted by Link.
const MinNameLen = 3

// Store is the slice of the encrypted store the resolver depends on.
// *storage.FileStore satisfies it.
type Store interface {
	ResolveFingerprint(ctx context.Context, fingerprint string) (string, error)
	Update(ctx context.Context, fn func(doc *storage.Document) error) error
}

// Resolver maps certificate fingerprints to durable usernames via the
// encrypted store.
type Resolver struct {
	store  Store
	logger logging.Logger
}

func NewResolver(store Store, logger logging.Logger) *Resolver {
	return &Resolver{store: store, logger: logger.With("module", "identity")}
}

// Resolve determines the acting identity from the transport-supplied
// certificate fingerprint (if any) and the caller-supplied name (if any).
func (r *Resolver) Resolve(ctx context.Context, fingerprint, suppliedName string, hasCert bool) (Identity, error) {
	if hasCert {
		username, err := r.store.ResolveFingerprint(ctx, fingerprint)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return Identity{Kind: CertUnlinked}, nil
			}
			return Identity{}, err
		}
		return Identity{Kind: Certified, Username: username}, nil
	}

	if suppliedName != "" {
		return Identity{Kind: Anonymous, Username: suppliedName}, nil
	}
	return Identity{Kind: AnonymousUnnamed}, nil
}

// Link validates desiredName, checks it is not taken by any existing user,
// and commits the fingerprint mapping together with the new user record in
// one store transaction. Either both are persisted or neither.
func (r *Resolver) Link(ctx context.Context, fingerprint, desiredName string) (Identity, error) {
	if !validName(desiredName) {
		return Identity{}, fmt.Errorf("name must be alphanumeric and at least %d characters: %w",
			MinNameLen, common.ErrValidation)
	}

	err := r.store.Update(ctx, func(doc *storage.Document) error {
		if existing, ok := doc.CertMappings[fingerprint]; ok {
			if existing == desiredName {
				return nil
			}
			return fmt.Errorf("certificate already linked to another user: %w", common.ErrConflict)
		}
		if _, ok := doc.Users[desiredName]; ok {
			return fmt.Errorf("name %q already taken: %w", desiredName, common.ErrConflict)
		}
		for fp, id := range doc.CertMappings {
			if id == desiredName {
				return fmt.Errorf("user already linked to certificate %s: %w", fp, common.ErrConflict)
			}
		}

		doc.EnsureUser(desiredName)
		doc.CertMappings[fingerprint] = desiredName
		return nil
	})
	if err != nil {
		return Identity{}, err
	}

	r.logger.Info(ctx, "certificate linked", "username", desiredName)
	return Identity{Kind: Certified, Username: desiredName}, nil
}

func validName(name string) bool {
	if len(name) < MinNameLen {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
