package credentials

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"seatwatch/internal/portal"
	"seatwatch/internal/shared/constants"
	"seatwatch/pkg/cache"
)

var (
	ErrCorrupt = errors.New("stored credentials cannot be decrypted")
)

const nonceSize = 24

// Credentials are the portal login of one user
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Store persists sessions and credentials per user id. Credentials are
// sealed with secretbox before they reach the key-value store.
type Store struct {
	kv         cache.Store
	key        [32]byte
	sessionTTL time.Duration
	captchaTTL time.Duration
}

// NewStore derives the encryption key from secret and wraps kv
func NewStore(kv cache.Store, secret string, sessionTTL, captchaTTL time.Duration) (*Store, error) {
	if secret == "" {
		return nil, errors.New("credentials secret must not be empty")
	}
	s := &Store{kv: kv, sessionTTL: sessionTTL, captchaTTL: captchaTTL}

	kdf := hkdf.New(sha256.New, []byte(secret), []byte("seatwatch"), []byte("portal-credentials"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive credentials key: %w", err)
	}
	return s, nil
}

// LoadCredentials returns the stored credentials or nil when there are none
func (s *Store) LoadCredentials(ctx context.Context, userID string) (*Credentials, error) {
	sealed, err := s.kv.Get(ctx, constants.LoginCredsKey(userID))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	if len(sealed) < nonceSize {
		return nil, ErrCorrupt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrCorrupt
	}

	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}

// SaveCredentials stores creds without expiry
func (s *Store) SaveCredentials(ctx context.Context, userID string, creds Credentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	return s.kv.Set(ctx, constants.LoginCredsKey(userID), sealed, 0)
}

// DeleteCredentials forgets the credentials of userID
func (s *Store) DeleteCredentials(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, constants.LoginCredsKey(userID))
}

// LoadSession returns the persisted session or nil when there is none
func (s *Store) LoadSession(ctx context.Context, userID string) (*portal.Session, error) {
	return s.loadCookies(ctx, userID, constants.LoginCookiesKey(userID))
}

func (s *Store) loadCookies(ctx context.Context, userID, key string) (*portal.Session, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	cookies, err := portal.UnmarshalCookies(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &portal.Session{UserID: userID, Cookies: cookies}, nil
}

// SaveSession persists the cookies of session
func (s *Store) SaveSession(ctx context.Context, session *portal.Session) error {
	return s.saveCookies(ctx, constants.LoginCookiesKey(session.UserID), session.Cookies, s.sessionTTL)
}

// DeleteSession forgets the persisted session of userID
func (s *Store) DeleteSession(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, constants.LoginCookiesKey(userID))
}

// SaveCaptchaSession keeps the session a CAPTCHA image was issued to until
// the user sends the solution.
func (s *Store) SaveCaptchaSession(ctx context.Context, session *portal.Session) error {
	return s.saveCookies(ctx, constants.CaptchaCookiesKey(session.UserID), session.Cookies, s.captchaTTL)
}

// TakeCaptchaSession returns and forgets the pending CAPTCHA session of userID
func (s *Store) TakeCaptchaSession(ctx context.Context, userID string) (*portal.Session, error) {
	key := constants.CaptchaCookiesKey(userID)
	session, err := s.loadCookies(ctx, userID, key)
	if err != nil || session == nil {
		return session, err
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) saveCookies(ctx context.Context, key string, cookies portal.Cookies, ttl time.Duration) error {
	data, err := cookies.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.kv.Set(ctx, key, data, ttl)
}
