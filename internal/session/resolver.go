// Package session derives the display identity from the session cookie and
// tracks whether the client is authenticated against the backend.
package session

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"chat-client/internal/models"
)

// CookieName is the cookie the backend sets on login and signup.
const CookieName = "access_token"

// DecodeFailed reports a token that could not be turned into an identity.
// It never leaves this package: resolvers answer "no identity" instead.
type DecodeFailed struct {
	Reason string
	Err    error
}

func (e *DecodeFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode identity token: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode identity token: %s", e.Reason)
}

func (e *DecodeFailed) Unwrap() error { return e.Err }

// Resolver turns a raw cookie string into an identity.
type Resolver struct {
	logger logrus.FieldLogger
	parser *jwt.Parser
}

// NewResolver constructs a Resolver. A nil logger discards decode failures.
func NewResolver(logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}
	return &Resolver{logger: logger, parser: jwt.NewParser()}
}

// ResolveIdentity returns the identity carried by the access_token cookie in
// rawCookie, or false when there is none or it cannot be decoded.
func (r *Resolver) ResolveIdentity(rawCookie string) (models.Identity, bool) {
	identity, err := r.decode(rawCookie)
	if err != nil {
		r.logger.WithError(err).Debug("no identity in cookie")
		return models.Identity{}, false
	}
	return identity, true
}

// IdentityFromRequest resolves the identity from the request's Cookie header.
func (r *Resolver) IdentityFromRequest(req *http.Request) (models.Identity, bool) {
	if req == nil {
		return models.Identity{}, false
	}
	return r.ResolveIdentity(req.Header.Get("Cookie"))
}

// IdentityFunc returns the identity of the current session, if any.
type IdentityFunc func() (models.Identity, bool)

// CookieSource exposes the cookies the client currently holds for the backend.
type CookieSource interface {
	CookieHeader() string
}

// CurrentIdentity resolves the identity from the cookies held by src.
func (r *Resolver) CurrentIdentity(src CookieSource) (models.Identity, bool) {
	if src == nil {
		return models.Identity{}, false
	}
	return r.ResolveIdentity(src.CookieHeader())
}

func (r *Resolver) decode(rawCookie string) (identity models.Identity, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			identity, err = models.Identity{}, &DecodeFailed{Reason: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	token, ok := tokenFromCookie(rawCookie)
	if !ok {
		return models.Identity{}, &DecodeFailed{Reason: "cookie absent"}
	}

	// The signature is never checked here, so a missing or unknown alg
	// header does not matter once the claims have been decoded.
	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return models.Identity{}, &DecodeFailed{Reason: "malformed token", Err: err}
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return models.Identity{}, &DecodeFailed{Reason: "invalid sub", Err: err}
	}
	if sub == "" {
		return models.Identity{}, &DecodeFailed{Reason: "missing sub"}
	}

	username, _ := claims["username"].(string)
	if username == "" {
		username = sub
	}
	return models.Identity{UserID: sub, Username: username}, nil
}

func tokenFromCookie(rawCookie string) (string, bool) {
	if rawCookie == "" {
		return "", false
	}
	req := http.Request{Header: http.Header{"Cookie": {rawCookie}}}
	cookie, err := req.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	token, err := url.PathUnescape(cookie.Value)
	if err != nil {
		return "", false
	}
	return token, token != ""
}

// IsDecodeFailed reports whether err is a DecodeFailed.
func IsDecodeFailed(err error) bool {
	var target *DecodeFailed
	return errors.As(err, &target)
}
