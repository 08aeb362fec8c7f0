// Package session implements Google OAuth login and stateful token
// validation. Every issued token is backed by a session record in the
// database; a token whose record is gone is dead no matter how valid
// its signature still is.
package session

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"pantry.app/internal/config"
	"pantry.app/internal/db"
	"pantry.app/internal/entity"
	"pantry.app/internal/statement"
)

const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

// googleEndpoint is spelled out instead of importing the oauth2/google
// helper package, which drags in a cloud metadata dependency.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://accounts.google.com/o/oauth2/token",
}

// Service exchanges OAuth codes for sessions and validates session tokens.
type Service struct {
	manager     *db.Manager
	oauth       *oauth2.Config
	priv        *rsa.PrivateKey
	pub         *rsa.PublicKey
	client      *http.Client
	userinfoURL string
	ttl         time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// Option tweaks Service construction, mostly for tests.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHTTPClient overrides the client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithEndpoints redirects the provider token and userinfo URLs.
func WithEndpoints(tokenURL, userinfoURL string) Option {
	return func(s *Service) {
		s.oauth.Endpoint = oauth2.Endpoint{AuthURL: tokenURL, TokenURL: tokenURL}
		s.userinfoURL = userinfoURL
	}
}

// New builds a session service around the shared database manager.
func New(manager *db.Manager, google config.Google, priv *rsa.PrivateKey, pub *rsa.PublicKey, ttl time.Duration, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		manager: manager,
		oauth: &oauth2.Config{
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			RedirectURL:  google.RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     googleEndpoint,
		},
		priv:        priv,
		pub:         pub,
		client:      http.DefaultClient,
		userinfoURL: defaultUserinfoURL,
		ttl:         ttl,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginURL returns the Google consent page URL for the given state value.
func (s *Service) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

type profile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Locale  string `json:"locale"`
}

// Callback finishes the OAuth exchange: it trades the code for an access
// token, fetches the Google profile, upserts the user, records a session
// and mints the signed token the client will carry.
func (s *Service) Callback(ctx context.Context, code, userAgent, clientIP string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("oauth code exchange failed", zap.Error(err))
		return "", ErrUnauthorized
	}
	if tok.AccessToken == "" {
		return "", ErrUnauthorized
	}

	p, err := s.fetchProfile(ctx, tok.AccessToken)
	if err != nil {
		s.log.Warn("userinfo fetch failed", zap.Error(err))
		return "", ErrUnauthorized
	}
	if p.ID == "" {
		return "", ErrUnauthorized
	}

	secret := uuid.NewString()
	fingerprint := Fingerprint(userAgent)

	if err := s.persist(ctx, p, tok.AccessToken, secret, fingerprint, clientIP); err != nil {
		return "", err
	}

	now := s.now()
	claims := Claims{
		Secret:      secret,
		Fingerprint: fingerprint,
		ClientIP:    clientIP,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return Sign(s.priv, claims)
}

func (s *Service) fetchProfile(ctx context.Context, accessToken string) (profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userinfoURL, nil)
	if err != nil {
		return profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return profile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var p profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return profile{}, err
	}
	return p, nil
}

// persist upserts the user row and inserts the session record in one
// transaction, so a failed session insert does not leave a half login.
func (s *Service) persist(ctx context.Context, p profile, accessToken, secret, fingerprint, clientIP string) error {
	userRow := map[string]any{
		"google_id":           p.ID,
		"google_email":        p.Email,
		"google_picture_url":  p.Picture,
		"google_access_token": accessToken,
		"name":                p.Name,
		"locale":              p.Locale,
	}
	sessionRow := map[string]any{
		"google_id":  p.ID,
		"token":      secret,
		"user_agent": fingerprint,
		"client_ip":  clientIP,
		"status":     "active",
	}

	upsertUser, err := statement.Upsert(entity.Users, userRow)
	if err != nil {
		return err
	}
	insertSession, err := statement.Insert(entity.Sessions, []map[string]any{sessionRow})
	if err != nil {
		return err
	}

	res := s.manager.Touch(ctx, []db.Task{
		db.StatementTask(entity.Users, upsertUser),
		db.StatementTask(entity.Sessions, insertSession),
	}, "Session established.", false)
	if !res.OK() {
		s.log.Error("session persistence failed", zap.String("message", res.Message))
		return ErrUnauthorized
	}
	return nil
}

// Validate checks the token signature, the client fingerprint and address,
// and the backing session record, and returns the authenticated Google user
// id. A mismatch on a well-signed token is treated as a possible token
// theft and logged before the generic 401.
func (s *Service) Validate(ctx context.Context, raw, userAgent, clientIP string) (string, error) {
	claims, err := parseToken(s.pub, raw, s.now)
	if err != nil {
		return "", ErrUnauthorized
	}

	fingerprint := Fingerprint(userAgent)
	if fingerprint != claims.Fingerprint {
		s.log.Warn("session fingerprint mismatch",
			zap.String("google_id", claims.Subject),
			zap.String("client_ip", clientIP))
		return "", ErrUnauthorized
	}
	if clientIP != claims.ClientIP {
		s.log.Warn("session client address mismatch",
			zap.String("google_id", claims.Subject),
			zap.String("client_ip", clientIP))
		return "", ErrUnauthorized
	}

	st, err := statement.Select(entity.Sessions, statement.Filters{
		And: map[string][]any{
			"google_id":  {claims.Subject},
			"token":      {claims.Secret},
			"user_agent": {fingerprint},
			"client_ip":  {clientIP},
			"status":     {"active"},
		},
	})
	if err != nil {
		return "", ErrUnauthorized
	}

	res := s.manager.TouchOne(ctx, db.StatementTask(entity.Sessions, st), db.MsgSuccess, true)
	if res.StatusCode != 200 {
		s.log.Warn("token presented without live session record",
			zap.String("google_id", claims.Subject),
			zap.String("client_ip", clientIP))
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// Logout removes the backing session record so the token dies server side.
// An unparseable token is a no-op; the cookie is cleared either way.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := parseToken(s.pub, raw, s.now)
	if err != nil {
		return nil
	}

	st, err := statement.Delete(entity.Sessions, map[string][]any{
		"google_id": {claims.Subject},
		"token":     {claims.Secret},
	})
	if err != nil {
		return err
	}

	res := s.manager.TouchOne(ctx, db.StatementTask(entity.Sessions, st), "Session closed.", false)
	if !res.OK() {
		return fmt.Errorf("session delete failed: %s", res.Message)
	}
	return nil
}
