package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/holdemd/internal/store"
)

// stubStorage is an in-memory Storage for tests.
type stubStorage struct {
	challenges map[string]string
	sessions   map[string]string
	profiles   map[string]*store.PlayerProfile
}

func newStubStorage() *stubStorage {
	return &stubStorage{
		challenges: map[string]string{},
		sessions:   map[string]string{},
		profiles:   map[string]*store.PlayerProfile{},
	}
}

func (s *stubStorage) SaveChallenge(id, nonce string, _ time.Duration) error {
	s.challenges[id] = nonce
	return nil
}

func (s *stubStorage) ConsumeChallenge(id string) (string, error) {
	nonce, ok := s.challenges[id]
	if !ok {
		return "", store.ErrNotFound
	}
	delete(s.challenges, id)
	return nonce, nil
}

func (s *stubStorage) SaveSession(token, identity string, _ time.Duration) error {
	s.sessions[token] = identity
	return nil
}

func (s *stubStorage) SessionIdentity(token string) (string, error) {
	identity, ok := s.sessions[token]
	if !ok {
		return "", store.ErrNotFound
	}
	return identity, nil
}

func (s *stubStorage) Player(identity string) (*store.PlayerProfile, error) {
	p, ok := s.profiles[identity]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *stubStorage) UpdateProfile(identity, handle, avatar, lud16 string) error {
	s.profiles[identity] = &store.PlayerProfile{
		Identity: identity, Handle: handle, Avatar: avatar, Lud16: lud16,
	}
	return nil
}

func acceptAll(*SignedEvent) error { return nil }

func newTestService(t *testing.T, verify func(*SignedEvent) error) (*Service, *stubStorage) {
	t.Helper()
	storage := newStubStorage()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	svc := NewService(Config{}, storage, VerifierFunc(verify), logger)
	return svc, storage
}

func signedEventFor(nonce string, at time.Time) *SignedEvent {
	return &SignedEvent{
		PubKey:    "pk-alice",
		CreatedAt: at.Unix(),
		Kind:      KindAuth,
		Tags:      [][]string{{"challenge", nonce}},
		Sig:       "sig",
	}
}

func TestChallengeVerifyRoundTrip(t *testing.T) {
	svc, storage := newTestService(t, acceptAll)

	challengeID, nonce, err := svc.Challenge()
	require.NoError(t, err)
	assert.Len(t, nonce, 64) // 32 bytes hex
	require.Contains(t, storage.challenges, challengeID)

	session, err := svc.Verify(challengeID, signedEventFor(nonce, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "pk-alice", session.Identity)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "pk-alice", session.Profile.Identity)
	// Default handle is a prefix of the identity.
	assert.Equal(t, "pk-alice", session.Profile.Handle)

	resolved, err := svc.Resolve(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "pk-alice", resolved.Identity)
}

func TestVerifyRejectsReplay(t *testing.T) {
	svc, _ := newTestService(t, acceptAll)

	challengeID, nonce, err := svc.Challenge()
	require.NoError(t, err)

	ev := signedEventFor(nonce, time.Now())
	_, err = svc.Verify(challengeID, ev)
	require.NoError(t, err)

	_, err = svc.Verify(challengeID, ev)
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestVerifyEnvelopeChecks(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SignedEvent)
	}{
		{"wrong kind", func(ev *SignedEvent) { ev.Kind = 1 }},
		{"missing nonce tag", func(ev *SignedEvent) { ev.Tags = nil }},
		{"wrong nonce", func(ev *SignedEvent) { ev.Tags = [][]string{{"challenge", "bogus"}} }},
		{"stale timestamp", func(ev *SignedEvent) { ev.CreatedAt = time.Now().Add(-10 * time.Minute).Unix() }},
		{"future timestamp", func(ev *SignedEvent) { ev.CreatedAt = time.Now().Add(10 * time.Minute).Unix() }},
		{"missing pubkey", func(ev *SignedEvent) { ev.PubKey = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, acceptAll)
			challengeID, nonce, err := svc.Challenge()
			require.NoError(t, err)

			ev := signedEventFor(nonce, time.Now())
			tc.mutate(ev)
			_, err = svc.Verify(challengeID, ev)
			require.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	svc, _ := newTestService(t, func(*SignedEvent) error {
		return errors.New("bad signature")
	})

	challengeID, nonce, err := svc.Challenge()
	require.NoError(t, err)

	_, err = svc.Verify(challengeID, signedEventFor(nonce, time.Now()))
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestVerifyUnknownChallenge(t *testing.T) {
	svc, _ := newTestService(t, acceptAll)
	_, err := svc.Verify("missing", signedEventFor("n", time.Now()))
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestResolveUnknownToken(t *testing.T) {
	svc, _ := newTestService(t, acceptAll)
	_, err := svc.Resolve("nope")
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestHTTPFlow(t *testing.T) {
	svc, storage := newTestService(t, acceptAll)
	storage.profiles["pk-alice"] = &store.PlayerProfile{
		Identity: "pk-alice", Handle: "alice", Chips: 9000,
	}

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	mux := http.NewServeMux()
	NewHandler(svc, logger).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Challenge.
	resp, err := http.Post(srv.URL+"/auth/challenge", "application/json", nil)
	require.NoError(t, err)
	var ch challengeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ch))
	resp.Body.Close()
	require.NotEmpty(t, ch.Nonce)

	// Verify.
	body, err := json.Marshal(verifyRequest{
		ChallengeID: ch.ChallengeID,
		SignedEvent: signedEventFor(ch.Nonce, time.Now()),
	})
	require.NoError(t, err)
	resp, err = http.Post(srv.URL+"/auth/verify", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	resp.Body.Close()
	assert.Equal(t, "pk-alice", sess.Identity)
	assert.Equal(t, "alice", sess.Profile.Handle)
	assert.Equal(t, 9000, sess.Profile.Chips)
	require.NotEmpty(t, sess.SessionToken)

	// Session lookup.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/session", nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, sess.SessionToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Bad token.
	req.Header.Set(SessionHeader, "bogus")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Replayed verify fails.
	resp, err = http.Post(srv.URL+"/auth/verify", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
