package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// AuthEvent names a change of the authenticated session.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// User is an account of the hosted auth service.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Session is a signed-in user with its tokens.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         User   `json:"user"`
}

// SignUpResult carries the new user.  Session is nil when the project
// requires email confirmation before the first sign in.
type SignUpResult struct {
	User    User
	Session *Session
}

// AuthChangeFunc observes session changes.  session is nil on sign out.
type AuthChangeFunc func(event AuthEvent, session *Session)

// AuthClient wraps the /auth/v1 endpoints.
type AuthClient struct {
	c *Client

	mu        sync.Mutex
	nextID    int
	listeners map[int]AuthChangeFunc
}

// OnAuthStateChange registers fn and returns a function that removes it.
func (a *AuthClient) OnAuthStateChange(fn AuthChangeFunc) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *AuthClient) emit(event AuthEvent, s *Session) {
	a.mu.Lock()
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]AuthChangeFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, a.listeners[id])
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(event, s)
	}
}

// SignUp creates an account.  metadata is stored as user metadata.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error) {
	body := map[string]any{"email": strings.TrimSpace(email), "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	// The response is a session when auto-confirm is on, a bare user otherwise.
	var raw struct {
		Session
		ID        string         `json:"id"`
		Email     string         `json:"email"`
		Metadata  map[string]any `json:"user_metadata"`
		CreatedAt time.Time      `json:"created_at"`
	}
	if _, err := a.c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", nil, body, nil, &raw); err != nil {
		return nil, err
	}
	if raw.AccessToken != "" {
		s := raw.Session
		a.emit(EventSignedIn, &s)
		return &SignUpResult{User: s.User, Session: &s}, nil
	}
	return &SignUpResult{User: User{ID: raw.ID, Email: raw.Email, UserMetadata: raw.Metadata, CreatedAt: raw.CreatedAt}}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	s, err := a.token(ctx, "password", map[string]string{"email": strings.TrimSpace(email), "password": password})
	if err != nil {
		return nil, err
	}
	a.emit(EventSignedIn, s)
	return s, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("backend: refresh token is required")
	}
	s, err := a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	a.emit(EventTokenRefreshed, s)
	return s, nil
}

func (a *AuthClient) token(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	var s Session
	q := url.Values{"grant_type": {grant}}
	if _, err := a.c.doJSON(ctx, http.MethodPost, "/auth/v1/token", q, body, nil, &s); err != nil {
		return nil, err
	}
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return &s, nil
}

// SignOut revokes the session identified by accessToken.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	ctx = WithAccessToken(ctx, accessToken)
	if _, err := a.c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil); err != nil {
		return err
	}
	a.emit(EventSignedOut, nil)
	return nil
}

// GetUser resolves accessToken to its user.  An expired or forged token
// yields an *APIError with status 401 or 403.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "missing access token"}
	}
	var u User
	if _, err := a.c.doJSON(WithAccessToken(ctx, accessToken), http.MethodGet, "/auth/v1/user", nil, nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
