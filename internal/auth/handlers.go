package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/cardroom/holdemd/internal/store"
)

// SessionHeader carries the session token on authenticated HTTP
// requests.
const SessionHeader = "x-session-token"

// Handler exposes the auth service over HTTP.
type Handler struct {
	svc    *Service
	logger *log.Logger
}

// NewHandler wraps a service for HTTP serving.
func NewHandler(svc *Service, logger *log.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.WithPrefix("auth-http")}
}

// Register mounts the auth routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/challenge", h.handleChallenge)
	mux.HandleFunc("POST /auth/verify", h.handleVerify)
	mux.HandleFunc("GET /auth/session", h.handleSession)
}

type challengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	Nonce       string `json:"nonce"`
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID, nonce, err := h.svc.Challenge()
	if err != nil {
		h.logger.Error("challenge failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{ChallengeID: challengeID, Nonce: nonce})
}

type verifyRequest struct {
	ChallengeID string       `json:"challenge_id"`
	SignedEvent *SignedEvent `json:"signed_event"`
}

type sessionResponse struct {
	SessionToken string       `json:"session_token,omitempty"`
	Identity     string       `json:"identity"`
	Profile      profileJSON  `json:"profile"`
}

type profileJSON struct {
	Identity      string `json:"identity"`
	Handle        string `json:"handle"`
	Avatar        string `json:"avatar,omitempty"`
	Lud16         string `json:"lud16,omitempty"`
	Chips         int    `json:"chips"`
	HandsPlayed   int    `json:"hands_played"`
	HandsWon      int    `json:"hands_won"`
	TotalWinnings int    `json:"total_winnings"`
	TotalLosses   int    `json:"total_losses"`
}

func toProfileJSON(p *store.PlayerProfile) profileJSON {
	return profileJSON{
		Identity:      p.Identity,
		Handle:        p.Handle,
		Avatar:        p.Avatar,
		Lud16:         p.Lud16,
		Chips:         p.Chips,
		HandsPlayed:   p.HandsPlayed,
		HandsWon:      p.HandsWon,
		TotalWinnings: p.TotalWinnings,
		TotalLosses:   p.TotalLosses,
	}
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-argument")
		return
	}

	session, err := h.svc.Verify(req.ChallengeID, req.SignedEvent)
	switch {
	case errors.Is(err, ErrInvalidChallenge), errors.Is(err, ErrInvalidEvent):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	case err != nil:
		h.logger.Error("verify failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionToken: session.Token,
		Identity:     session.Identity,
		Profile:      toProfileJSON(session.Profile),
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(SessionHeader)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	session, err := h.svc.Resolve(token)
	switch {
	case errors.Is(err, ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	case err != nil:
		h.logger.Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Identity: session.Identity,
		Profile:  toProfileJSON(session.Profile),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]string{"error": kind})
}
