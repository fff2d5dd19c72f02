package apiclient

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// CredentialHandle owns the session cookies set by the backend. Requests pick
// them up through the jar; the token value is only read back for identity display.
type CredentialHandle struct {
	base *url.URL

	mu  sync.RWMutex
	jar http.CookieJar
}

// NewCredentialHandle builds an empty handle scoped to the API base URL.
func NewCredentialHandle(apiBase string) (*CredentialHandle, error) {
	base, err := url.Parse(apiBase)
	if err != nil {
		return nil, errors.Wrap(err, "parsing api base")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating cookie jar")
	}
	return &CredentialHandle{base: base, jar: jar}, nil
}

// Jar exposes the handle as a cookie jar for the transport.
func (h *CredentialHandle) Jar() http.CookieJar {
	return handleJar{h}
}

// CookieHeader renders the cookies the backend would receive, in Cookie header form.
func (h *CredentialHandle) CookieHeader() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cookies := h.jar.Cookies(h.base)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Seed loads cookies from a Cookie header string, as copied from a browser.
// It returns how many cookies were stored.
func (h *CredentialHandle) Seed(rawCookie string) int {
	req := http.Request{Header: http.Header{"Cookie": {rawCookie}}}
	cookies := req.Cookies()
	if len(cookies) == 0 {
		return 0
	}
	for _, c := range cookies {
		c.Path = "/"
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.jar.SetCookies(h.base, cookies)
	return len(cookies)
}

// Clear forgets every cookie, signing the client out locally.
func (h *CredentialHandle) Clear() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.jar = jar
	h.mu.Unlock()
}

type handleJar struct {
	h *CredentialHandle
}

func (j handleJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.h.mu.RLock()
	defer j.h.mu.RUnlock()
	j.h.jar.SetCookies(u, cookies)
}

func (j handleJar) Cookies(u *url.URL) []*http.Cookie {
	j.h.mu.RLock()
	defer j.h.mu.RUnlock()
	return j.h.jar.Cookies(u)
}
