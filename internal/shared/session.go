package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates cookie based staff sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	userID    int64
	username  string
	isStaff   bool
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
}

// NewSessionManager constructs a SessionManager. Cookie values are signed
// with secret.
func NewSessionManager(client *redis.Client, cookieName, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
	}
}

// Load returns the session referenced by the request cookie, or a fresh
// anonymous session when the cookie is missing or expired.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	id, ok := sm.verify(cookie.Value)
	if !ok {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	return &Session{
		ID:       id,
		userID:   stored.UserID,
		username: stored.Username,
		isStaff:  stored.IsStaff,
	}, nil
}

// Commit persists the session and writes cookie headers as needed. Anonymous
// sessions are never stored.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.userID == 0 || !sess.dirty {
		return nil
	}

	data, err := json.Marshal(sessionPayload{UserID: sess.userID, Username: sess.username, IsStaff: sess.isStaff})
	if err != nil {
		return err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
		return err
	}
	sess.dirty = false
	sess.isNew = false

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sm.sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// SetUser binds the session to a staff user. A new ID is issued on login so a
// pre-login cookie can never be promoted.
func (s *Session) SetUser(id int64, username string, isStaff bool) {
	s.ID = uuid.NewString()
	s.userID = id
	s.username = username
	s.isStaff = isStaff
	s.dirty = true
}

// UserID returns the bound user, zero for anonymous sessions.
func (s *Session) UserID() int64 {
	if s == nil {
		return 0
	}
	return s.userID
}

// Username returns the bound username.
func (s *Session) Username() string {
	if s == nil {
		return ""
	}
	return s.username
}

// IsStaff reports whether the bound user may use the back-office.
func (s *Session) IsStaff() bool {
	return s != nil && s.isStaff
}

// IsNew reports whether the session has not been persisted yet.
func (s *Session) IsNew() bool {
	return s != nil && s.isNew
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:    uuid.NewString(),
		isNew: true,
	}
}

func (sm *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, _, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(value), []byte(sm.sign(id))) {
		return "", false
	}
	return id, true
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}
