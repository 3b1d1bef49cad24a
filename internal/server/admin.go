package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cardroom/holdemd/internal/store"
)

// AdminTokenHeader carries the shared admin token.
const AdminTokenHeader = "X-Admin-Token"

// registerAdmin mounts the token-gated operator surface.
func (s *Server) registerAdmin(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/hand/{id}", s.adminOnly(s.adminHand))
	mux.HandleFunc("GET /admin/hands", s.adminOnly(s.adminHands))
	mux.HandleFunc("GET /admin/player/{identity}", s.adminOnly(s.adminPlayer))
	mux.HandleFunc("GET /admin/tables", s.adminOnly(s.adminTables))
	mux.HandleFunc("GET /admin/stats", s.adminOnly(s.adminStats))
	mux.HandleFunc("POST /admin/ban", s.adminOnly(s.adminBan))
	mux.HandleFunc("POST /admin/unban", s.adminOnly(s.adminUnban))
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(AdminTokenHeader) != s.cfg.Server.AdminToken {
			adminError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next(w, r)
	}
}

func adminJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
	}
}

func adminError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) adminHand(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		adminError(w, http.StatusBadRequest, "invalid hand id")
		return
	}
	hand, err := s.db.Hand(id)
	if errors.Is(err, store.ErrNotFound) {
		adminError(w, http.StatusNotFound, "hand not found")
		return
	}
	if err != nil {
		adminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	adminJSON(w, hand)
}

func (s *Server) adminHands(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		adminError(w, http.StatusBadRequest, "identity query parameter required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hands, err := s.db.HandsByIdentity(identity, limit)
	if err != nil {
		adminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	adminJSON(w, map[string]any{"hands": hands})
}

func (s *Server) adminPlayer(w http.ResponseWriter, r *http.Request) {
	profile, err := s.db.Player(r.PathValue("identity"))
	if errors.Is(err, store.ErrNotFound) {
		adminError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		adminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	adminJSON(w, profile)
}

func (s *Server) adminTables(w http.ResponseWriter, _ *http.Request) {
	s.coord.mu.Lock()
	rooms := make([]*tableRoom, 0, len(s.coord.rooms))
	for _, room := range s.coord.rooms {
		rooms = append(rooms, room)
	}
	s.coord.mu.Unlock()

	type tableStatus struct {
		TableID  string `json:"table_id"`
		HandID   uint64 `json:"hand_id"`
		Phase    string `json:"phase"`
		Occupied int    `json:"occupied"`
		Pot      int    `json:"pot"`
	}
	var out []tableStatus
	for _, room := range rooms {
		snap := room.table.Snapshot()
		occupied := 0
		for _, seat := range snap.Seats {
			if seat.Occupied {
				occupied++
			}
		}
		out = append(out, tableStatus{
			TableID:  snap.TableID,
			HandID:   snap.HandID,
			Phase:    snap.Phase.String(),
			Occupied: occupied,
			Pot:      snap.Pot,
		})
	}
	adminJSON(w, map[string]any{"tables": out})
}

func (s *Server) adminStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		adminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	adminJSON(w, map[string]any{
		"players":      stats.Players,
		"hands_played": stats.HandsPlayed,
		"total_pots":   stats.TotalPots,
	})
}

type banRequest struct {
	Kind   string `json:"kind"` // "identity" or "ip"
	Value  string `json:"value"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) adminBan(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		adminError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if (req.Kind != store.BanIdentity && req.Kind != store.BanIP) || req.Value == "" {
		adminError(w, http.StatusBadRequest, "kind must be identity or ip, value required")
		return
	}
	if err := s.db.Ban(req.Kind, req.Value, req.Reason); err != nil {
		adminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	adminJSON(w, map[string]string{"status": "banned"})
}

func (s *Server) adminUnban(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		adminError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if err := s.db.Unban(req.Kind, req.Value); err != nil {
		adminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	adminJSON(w, map[string]string{"status": "unbanned"})
}
