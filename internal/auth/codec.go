package auth

import (
	"context"
	"errors"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/session"
)

// Codec converts between a resolved profile and the reference kept in a
// session. Only the id is stored; the profile is reloaded on every request.
type Codec struct {
	repo identity.Repository
}

// NewCodec creates a codec backed by repo.
func NewCodec(repo identity.Repository) *Codec {
	return &Codec{repo: repo}
}

// Serialize reduces a profile to its session reference.
func (c *Codec) Serialize(p identity.Profile) session.Ref {
	return session.Ref{IdentityID: p.ID}
}

// Deserialize reloads the profile a reference points to. found is false when
// the identity no longer exists.
func (c *Codec) Deserialize(ctx context.Context, ref session.Ref) (identity.Profile, bool, error) {
	if ref.IdentityID == "" {
		return identity.Profile{}, false, nil
	}
	p, err := c.repo.FindProfileByID(ctx, ref.IdentityID)
	if errors.Is(err, apperr.ErrNotFound) {
		return identity.Profile{}, false, nil
	}
	if err != nil {
		return identity.Profile{}, false, err
	}
	return p, true, nil
}
