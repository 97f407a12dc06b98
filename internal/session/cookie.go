package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "ecoms.sid"

// CookiePolicy describes the cookie carrying the session token. HttpOnly is
// always set; it is not configurable.
type CookiePolicy struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite string
	MaxAge   time.Duration
}

// NewCookiePolicy validates and normalizes cookie attributes. sameSite is
// one of lax, strict or none; none is only accepted together with secure.
func NewCookiePolicy(name, domain string, secure bool, sameSite string, maxAge time.Duration) (CookiePolicy, error) {
	if name == "" {
		name = DefaultCookieName
	}
	mode, err := parseSameSite(sameSite)
	if err != nil {
		return CookiePolicy{}, err
	}
	if mode == fiber.CookieSameSiteNoneMode && !secure {
		return CookiePolicy{}, fmt.Errorf("SameSite=None requires a Secure cookie")
	}
	if maxAge <= 0 {
		maxAge = DefaultTTL
	}
	return CookiePolicy{Name: name, Domain: domain, Path: "/", Secure: secure, SameSite: mode, MaxAge: maxAge}, nil
}

func parseSameSite(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", fiber.CookieSameSiteLaxMode:
		return fiber.CookieSameSiteLaxMode, nil
	case fiber.CookieSameSiteStrictMode:
		return fiber.CookieSameSiteStrictMode, nil
	case fiber.CookieSameSiteNoneMode:
		return fiber.CookieSameSiteNoneMode, nil
	default:
		return "", fmt.Errorf("unsupported SameSite mode %q", v)
	}
}

// Token returns the session token sent by the client, or "".
func (p CookiePolicy) Token(c *fiber.Ctx) string {
	return c.Cookies(p.Name)
}

// Issue sets the cookie for s. Max-Age follows the lifetime remaining as of
// the session's last activity when it is shorter than the configured maximum.
func (p CookiePolicy) Issue(c *fiber.Ctx, s Session) {
	maxAge := p.MaxAge
	if remaining := s.ExpiresAt.Sub(s.LastSeenAt); remaining < maxAge {
		maxAge = remaining
	}
	c.Cookie(&fiber.Cookie{
		Name:     p.Name,
		Value:    s.ID,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   p.Secure,
		HTTPOnly: true,
		SameSite: p.SameSite,
	})
}

// Clear instructs the client to drop the cookie.
func (p CookiePolicy) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     p.Name,
		Value:    "",
		Path:     p.Path,
		Domain:   p.Domain,
		Expires:  time.Unix(0, 0),
		Secure:   p.Secure,
		HTTPOnly: true,
		SameSite: p.SameSite,
	})
}
