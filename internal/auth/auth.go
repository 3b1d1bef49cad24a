// Package auth implements challenge/response authentication and
// session tokens. Clients prove control of a public key by signing an
// event that embeds a one-use server nonce; signature verification
// itself is an injected capability, the engine only checks the
// envelope (nonce, kind, timestamp freshness).
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cardroom/holdemd/internal/store"
)

var (
	// ErrInvalidChallenge covers unknown, expired and replayed
	// challenges.
	ErrInvalidChallenge = errors.New("auth: invalid challenge")

	// ErrInvalidEvent covers envelope failures: bad kind, missing or
	// mismatched nonce tag, stale timestamp, bad signature.
	ErrInvalidEvent = errors.New("auth: invalid signed event")

	// ErrInvalidSession is returned for unknown or expired tokens.
	ErrInvalidSession = errors.New("auth: invalid session")
)

// KindAuth is the required kind discriminator on authentication
// events, so a signature produced for another purpose can never be
// replayed here.
const KindAuth = 22242

// MaxClockSkew bounds how far an event's timestamp may sit from
// server time.
const MaxClockSkew = 300 * time.Second

// SignedEvent is the public-key-signed envelope a client submits to
// prove identity. PubKey is the opaque persistent identity.
type SignedEvent struct {
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// nonceTag extracts the challenge nonce from the event's tags.
func (ev *SignedEvent) nonceTag() string {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "challenge" {
			return tag[1]
		}
	}
	return ""
}

// Verifier checks the cryptographic signature of an event. The
// concrete scheme lives outside the engine.
type Verifier interface {
	Verify(ev *SignedEvent) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ev *SignedEvent) error

func (f VerifierFunc) Verify(ev *SignedEvent) error { return f(ev) }

// Storage is the slice of the persistence layer auth needs.
type Storage interface {
	SaveChallenge(challengeID, nonce string, ttl time.Duration) error
	ConsumeChallenge(challengeID string) (string, error)
	SaveSession(token, identity string, ttl time.Duration) error
	SessionIdentity(token string) (string, error)
	Player(identity string) (*store.PlayerProfile, error)
	UpdateProfile(identity, handle, avatar, lud16 string) error
}

// Config holds the auth timing knobs.
type Config struct {
	ChallengeTTL time.Duration // default 5 min
	SessionTTL   time.Duration // default 24 h
}

func (c *Config) applyDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 24 * time.Hour
	}
}

// Service issues challenges and session tokens.
type Service struct {
	cfg      Config
	storage  Storage
	verifier Verifier
	logger   *log.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewService creates the auth service.
func NewService(cfg Config, storage Storage, verifier Verifier, logger *log.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:      cfg,
		storage:  storage,
		verifier: verifier,
		logger:   logger.WithPrefix("auth"),
		now:      time.Now,
	}
}

/// Challenge issues a one-use challenge: a 32-byte hex nonce under a
// random id, valid for the configured TTL.
func (s *Service) Challenge() (challengeID, nonce string, err error) {
	challengeID = randomHex(16)
	nonce = randomHex(32)
	if err := s.storage.SaveChallenge(challengeID, nonce, s.cfg.ChallengeTTL); err != nil {
		return "", "", err
	}
	return challengeID, nonce, nil
}

// Session is the result of a successful verification.
type Session struct {
	Token    string
	Identity string
	Profile  *store.PlayerProfile
}

// Verify consumes a challenge against a signed event and mints a
// session token. The challenge is consumed before the envelope checks,
// so a failed attempt still burns it.
func (s *Service) Verify(challengeID string, ev *SignedEvent) (*Session, error) {
	nonce, err := s.storage.ConsumeChallenge(challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidChallenge
	}
	if err != nil {
		return nil, err
	}

	if ev == nil || ev.PubKey == "" {
		return nil, fmt.Errorf("%w: missing pubkey", ErrInvalidEvent)
	}
	if ev.Kind != KindAuth {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidEvent, ev.Kind)
	}
	if ev.nonceTag() != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrInvalidEvent)
	}
	skew := s.now().Sub(time.Unix(ev.CreatedAt, 0))
	if skew < -MaxClockSkew || skew > MaxClockSkew {
		return nil, fmt.Errorf("%w: timestamp outside window", ErrInvalidEvent)
	}
	if err := s.verifier.Verify(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	token := randomHex(32)
	if err := s.storage.SaveSession(token, ev.PubKey, s.cfg.SessionTTL); err != nil {
		return nil, err
	}

	profile := s.profileFor(ev.PubKey)
	s.logger.Info("session issued", "identity", ev.PubKey)
	return &Session{Token: token, Identity: ev.PubKey, Profile: profile}, nil
}

// Resolve maps a session token to its identity and profile.
func (s *Service) Resolve(token string) (*Session, error) {
	identity, err := s.storage.SessionIdentity(token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Identity: identity, Profile: s.profileFor(identity)}, nil
}

// UpdateProfile persists a player's presentation fields.
func (s *Service) UpdateProfile(identity, handle, avatar, lud16 string) error {
	return s.storage.UpdateProfile(identity, handle, avatar, lud16)
}

// profileFor loads a profile, falling back to a minimal one for
// first-time identities.
func (s *Service) profileFor(identity string) *store.PlayerProfile {
	profile, err := s.storage.Player(identity)
	if errors.Is(err, store.ErrNotFound) {
		return &store.PlayerProfile{Identity: identity, Handle: shortHandle(identity)}
	}
	if err != nil {
		s.logger.Error("profile load failed", "identity", identity, "error", err)
		return &store.PlayerProfile{Identity: identity, Handle: shortHandle(identity)}
	}
	if profile.Handle == "" {
		profile.Handle = shortHandle(identity)
	}
	return profile
}

// shortHandle derives a default display handle from an identity.
func shortHandle(identity string) string {
	if len(identity) <= 8 {
		return identity
	}
	return identity[:8]
}

// randomHex returns n cryptographically random bytes hex-encoded. The
// process refuses to run without entropy.
func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("auth: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
