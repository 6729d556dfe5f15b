package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	cookieName = "travel_guide"
	idKey      = "sid"
)

// CookieStore keeps only the session ID in a signed browser cookie
type CookieStore struct {
	store *sessions.CookieStore
}

// NewCookieStore creates a store; an empty secret gets a random per-process key
func NewCookieStore(secret string, secure bool, maxAge time.Duration) *CookieStore {
	key := []byte(secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(key)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.MaxAge = int(maxAge.Seconds())
	return &CookieStore{store: store}
}

// SessionID returns the browser's session ID, issuing a new one when absent or unreadable
func (c *CookieStore) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	// a decode error still yields a fresh session
	cookie, _ := c.store.Get(r, cookieName)
	if id, ok := cookie.Values[idKey].(string); ok && id != "" {
		return id, nil
	}

	id := NewID()
	cookie.Values[idKey] = id
	if err := cookie.Save(r, w); err != nil {
		return "", fmt.Errorf("save session cookie: %w", err)
	}
	return id, nil
}
