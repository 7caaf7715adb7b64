package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
)

// ErrNoSigningKey is returned when a LocalSource has no signer configured.
var ErrNoSigningKey = errors.New("no signing key configured")

// DeriveSigningKey stretches a shared secret into an ed25519 key with
// Argon2id, so a client and a development server configured with the same
// secret agree on the key pair.
func DeriveSigningKey(secret, salt string) (ed25519.PrivateKey, error) {
	if secret == "" {
		return nil, ErrNoSigningKey
	}
	seed := argon2.IDKey([]byte(secret), []byte(salt), 1, 64*1024, 2, ed25519.SeedSize)
	return ed25519.NewKeyFromSeed(seed), nil
}

// Signer mints and verifies EdDSA JWTs with "sub" = user id.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

// NewSigner returns a signer; ttl <= 0 means tokens carry no exp claim.
func NewSigner(key ed25519.PrivateKey, ttl time.Duration) *Signer {
	return &Signer{
		privateKey: key,
		publicKey:  key.Public().(ed25519.PublicKey),
		ttl:        ttl,
		now:        time.Now,
	}
}

// CreateJWT signs a token for userID and reports its expiry (zero if none).
func (s *Signer) CreateJWT(userID string) (string, time.Time, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": s.now().Unix(),
	}
	var exp time.Time
	if s.ttl > 0 {
		exp = s.now().Add(s.ttl)
		claims["exp"] = exp.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// AuthenticateJWT verifies a token and returns its "sub".
func (s *Signer) AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return userID, nil
}

// LocalSource is a TokenSource backed by a local Signer. Tokens are cached
// and re-minted once they are within refreshMargin of expiry.
type LocalSource struct {
	mu            sync.Mutex
	signer        *Signer
	uid           string
	token         string
	expires       time.Time
	refreshMargin time.Duration
}

// NewLocalSource signs tokens for uid. An empty uid starts signed out.
func NewLocalSource(signer *Signer, uid string) *LocalSource {
	return &LocalSource{signer: signer, uid: uid, refreshMargin: time.Minute}
}

func (s *LocalSource) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uid == "" {
		return nil
	}
	return localIdentity{src: s, uid: s.uid}
}

// SignIn switches the source to uid and drops any cached token.
func (s *LocalSource) SignIn(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = uid
	s.token = ""
	s.expires = time.Time{}
}

func (s *LocalSource) SignOut() { s.SignIn("") }

func (s *LocalSource) tokenFor(uid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signer == nil {
		return "", ErrNoSigningKey
	}
	if uid != s.uid {
		return "", fmt.Errorf("identity %s is no longer signed in", uid)
	}
	if s.token != "" && (s.expires.IsZero() || s.signer.now().Add(s.refreshMargin).Before(s.expires)) {
		// A cached token is reused only while it still verifies for uid.
		if sub, err := s.signer.AuthenticateJWT(s.token); err == nil && sub == uid {
			return s.token, nil
		}
	}
	token, exp, err := s.signer.CreateJWT(uid)
	if err != nil {
		return "", err
	}
	s.token, s.expires = token, exp
	return token, nil
}

type localIdentity struct {
	src *LocalSource
	uid string
}

func (i localIdentity) UID() string { return i.uid }

func (i localIdentity) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return i.src.tokenFor(i.uid)
}
