package auth

import (
	"context"
	"log/slog"

	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/logging"
	"github.com/ecoms/ecoms_account/internal/metrics"
	"github.com/ecoms/ecoms_account/internal/session"
)

// Service establishes and ends customer sessions.
type Service struct {
	strategy *LocalStrategy
	codec    *Codec
	store    session.Store
	metrics  *metrics.Auth
	logger   *slog.Logger
}

// NewService creates an auth service. m and logger may be nil.
func NewService(strategy *LocalStrategy, codec *Codec, store session.Store, m *metrics.Auth, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{strategy: strategy, codec: codec, store: store, metrics: m, logger: logger}
}

// Login authenticates email and pw and on success opens a new session bound
// to the identity. Rejections return apperr.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, pw string) (identity.Profile, session.Session, error) {
	res := s.strategy.Authenticate(ctx, email, pw)
	s.metrics.ObserveLogin(res.Outcome.String())
	if err := res.Err(); err != nil {
		return identity.Profile{}, session.Session{}, err
	}

	sess, err := s.store.Create(ctx, s.codec.Serialize(res.Profile))
	if err != nil {
		return identity.Profile{}, session.Session{}, err
	}
	s.metrics.SessionCreated()
	s.logger.Info("session established", "identity_id", res.Profile.ID)
	return res.Profile, sess, nil
}

// Logout destroys the session behind token. An empty or unknown token is not
// an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Destroy(ctx, token); err != nil {
		return err
	}
	s.metrics.SessionDestroyed("logout")
	return nil
}
