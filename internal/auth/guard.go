package auth

import (
	"context"
	"log/slog"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/logging"
	"github.com/ecoms/ecoms_account/internal/metrics"
	"github.com/ecoms/ecoms_account/internal/session"
)

// Guard rejection causes.
const (
	causeNoSession        = "no_session"
	causeUnknownOrExpired = "unknown_or_expired"
	causeUnauthenticated  = "unauthenticated"
	causeDangling         = "dangling"
)

// Guard admits requests that carry a live session for an existing identity.
type Guard struct {
	store   session.Store
	codec   *Codec
	metrics *metrics.Auth
	logger  *slog.Logger
}

// NewGuard creates a guard. m and logger may be nil.
func NewGuard(store session.Store, codec *Codec, m *metrics.Auth, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Guard{store: store, codec: codec, metrics: m, logger: logger}
}

// Access is what an admitted request resolved to.
type Access struct {
	Profile identity.Profile
	// Session is the session after this request touched it.
	Session session.Session
	// Extended reports that the touch moved ExpiresAt forward, so the client
	// needs a fresh cookie.
	Extended bool
}

// RequireAuthenticated resolves the profile behind token. Missing, unknown
// and expired sessions return apperr.ErrUnauthorized, as does a session whose
// identity was deleted; that session is destroyed on the way out. Store
// failures are returned as is.
func (g *Guard) RequireAuthenticated(ctx context.Context, token string) (identity.Profile, error) {
	access, err := g.Admit(ctx, token)
	return access.Profile, err
}

// Admit is RequireAuthenticated that also reports the touched session.
func (g *Guard) Admit(ctx context.Context, token string) (Access, error) {
	if token == "" {
		return g.reject(causeNoSession)
	}

	s, ok, err := g.store.Read(ctx, token)
	if err != nil {
		return Access{}, err
	}
	if !ok {
		return g.reject(causeUnknownOrExpired)
	}
	if !s.Authenticated {
		return g.reject(causeUnauthenticated)
	}

	profile, found, err := g.codec.Deserialize(ctx, s.IdentityRef)
	if err != nil {
		return Access{}, err
	}
	if !found {
		if err := g.store.Destroy(ctx, token); err != nil {
			logging.LogError(g.logger, "destroy dangling session failed", err, "identity_id", s.IdentityRef.IdentityID)
		} else {
			g.metrics.SessionDestroyed(causeDangling)
		}
		return g.reject(causeDangling)
	}

	touched, ok, err := g.store.Touch(ctx, token)
	if err != nil {
		return Access{}, err
	}
	// Expired or destroyed since Read.
	if !ok {
		return g.reject(causeUnknownOrExpired)
	}
	return Access{
		Profile:  profile,
		Session:  touched,
		Extended: touched.ExpiresAt.After(s.ExpiresAt),
	}, nil
}

func (g *Guard) reject(cause string) (Access, error) {
	g.metrics.GuardRejected(cause)
	return Access{}, apperr.ErrUnauthorized
}
