package members

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultCookieName is the session cookie fiber handlers read and write.
const DefaultCookieName = "members_session"

// CookieCodec signs the opaque session token into the cookie value and
// verifies it back out. The token itself stays server-side meaningful
// only; the MAC just rejects tampered cookies before a store roundtrip.
type CookieCodec struct {
	Name   string
	secret []byte
}

func NewCookieCodec(secret string) *CookieCodec {
	return &CookieCodec{
		Name:   DefaultCookieName,
		secret: []byte(secret),
	}
}

func (cc *CookieCodec) sign(token string) string {
	mac := hmac.New(sha256.New, cc.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Encode produces the cookie value for a session token.
func (cc *CookieCodec) Encode(token string) string {
	return token + "." + cc.sign(token)
}

// Decode verifies and strips the MAC. A missing or invalid signature
// yields an empty token, which downstream treats as anonymous.
func (cc *CookieCodec) Decode(value string) string {
	token, sig, found := strings.Cut(value, ".")
	if !found || token == "" {
		return ""
	}

	if !hmac.Equal([]byte(sig), []byte(cc.sign(token))) {
		return ""
	}

	return token
}

// WriteCookie sets the session cookie for the given session.
func (cc *CookieCodec) WriteCookie(c *fiber.Ctx, session *Session) {
	c.Cookie(&fiber.Cookie{
		Name:     cc.Name,
		Value:    cc.Encode(session.Token()),
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

// ClearCookie expires the session cookie.
func (cc *CookieCodec) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     cc.Name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

// ReadToken extracts the verified session token from the request, or ""
// when the request carries no usable cookie.
func (cc *CookieCodec) ReadToken(c *fiber.Ctx) string {
	return cc.Decode(c.Cookies(cc.Name))
}
