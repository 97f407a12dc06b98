package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/notification"
	"github.com/ecoms/ecoms_account/internal/password"
)

const (
	maxNameRunes  = 100
	maxPhoneRunes = 32
	maxEmailBytes = 254
)

// Service manages the customer account lifecycle.
type Service struct {
	repo     Repository
	hasher   password.Hasher
	notifier notification.Notifier
	now      func() time.Time
}

// NewService creates a new identity service. notifier may be nil.
func NewService(repo Repository, hasher password.Hasher, notifier notification.Notifier) *Service {
	return &Service{repo: repo, hasher: hasher, notifier: notifier, now: time.Now}
}

// NormalizeEmail trims and lower-cases an email. Every store write and
// lookup goes through it, so emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp validates the input, hashes the password and inserts the customer.
// A duplicate email surfaces as apperr.ErrEmailTaken from the store.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Profile, error) {
	email := NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return Profile{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return Profile{}, err
	}
	first, last, phone := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), strings.TrimSpace(in.PhoneNumber)
	if err := validateDetails(first, last, phone); err != nil {
		return Profile{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Profile{}, err
	}

	now := s.now().UTC()
	identity := Identity{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		PhoneNumber:  phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, identity); err != nil {
		return Profile{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindAccountCreated,
			Destination: identity.Email,
			Body:        "Welcome " + identity.FirstName,
		})
	}
	return identity.Profile(), nil
}

// Profile returns the projected record of a customer.
func (s *Service) Profile(ctx context.Context, id string) (Profile, error) {
	return s.repo.FindProfileByID(ctx, id)
}

// UpdateProfile applies the non-nil fields of in. A new password is hashed
// into a new credential hash.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateInput) (Profile, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	next := current
	if in.Email != nil {
		next.Email = NormalizeEmail(*in.Email)
		if err := validateEmail(next.Email); err != nil {
			return Profile{}, err
		}
	}
	if in.FirstName != nil {
		next.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		next.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.PhoneNumber != nil {
		next.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if err := validateDetails(next.FirstName, next.LastName, next.PhoneNumber); err != nil {
		return Profile{}, err
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return Profile{}, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return Profile{}, err
		}
		next.PasswordHash = hash
	}

	next.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, next); err != nil {
		return Profile{}, err
	}
	return next.Profile(), nil
}

// Delete removes a customer account.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	if len(email) > maxEmailBytes {
		return apperr.Validation("email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("email is not a valid address")
	}
	return nil
}

func validatePassword(pw string) error {
	if pw == "" {
		return apperr.Validation("password is required")
	}
	if len(pw) > password.MaxBytes {
		return apperr.Validation("password must be at most %d bytes", password.MaxBytes)
	}
	return nil
}

func validateDetails(first, last, phone string) error {
	if utf8.RuneCountInString(first) > maxNameRunes || utf8.RuneCountInString(last) > maxNameRunes {
		return apperr.Validation("names must be at most %d characters", maxNameRunes)
	}
	if utf8.RuneCountInString(phone) > maxPhoneRunes {
		return apperr.Validation("phone number must be at most %d characters", maxPhoneRunes)
	}
	return nil
}
