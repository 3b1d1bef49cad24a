// Package store is the sqlite persistence layer: hand archives,
// player profiles, session tokens, auth challenges, bans and the
// anti-rathole departure log.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cardroom/holdemd/internal/deck"
	"github.com/cardroom/holdemd/internal/game"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// Store wraps the sqlite database. Safe for concurrent use; sqlite
// serialises writers internally.
type Store struct {
	db *sql.DB

	// now is swapped out in tests.
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			identity       TEXT PRIMARY KEY,
			handle         TEXT NOT NULL DEFAULT '',
			avatar         TEXT NOT NULL DEFAULT '',
			lud16          TEXT NOT NULL DEFAULT '',
			chips          INTEGER NOT NULL DEFAULT 0,
			hands_played   INTEGER NOT NULL DEFAULT 0,
			hands_won      INTEGER NOT NULL DEFAULT 0,
			total_winnings INTEGER NOT NULL DEFAULT 0,
			total_losses   INTEGER NOT NULL DEFAULT 0,
			created_at     TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS hands (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			table_id     TEXT NOT NULL,
			hand_no      INTEGER NOT NULL,
			started_at   TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL,
			small_blind  INTEGER NOT NULL,
			big_blind    INTEGER NOT NULL,
			button_seat  INTEGER NOT NULL,
			pot_total    INTEGER NOT NULL,
			community    TEXT NOT NULL DEFAULT '',
			history      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hands_table ON hands(table_id, hand_no)`,
		`CREATE TABLE IF NOT EXISTS hand_players (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			hand_id         INTEGER NOT NULL REFERENCES hands(id),
			identity        TEXT NOT NULL,
			handle          TEXT NOT NULL,
			seat            INTEGER NOT NULL,
			starting_stack  INTEGER NOT NULL,
			ending_stack    INTEGER NOT NULL,
			total_committed INTEGER NOT NULL,
			hole_cards      TEXT NOT NULL DEFAULT '',
			final_hand      TEXT NOT NULL DEFAULT '',
			position        TEXT NOT NULL DEFAULT '',
			actions         TEXT NOT NULL DEFAULT '',
			won_amount      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_players_identity ON hand_players(identity)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_players_hand ON hand_players(hand_id)`,
		`CREATE TABLE IF NOT EXISTS bans (
			kind       TEXT NOT NULL,
			value      TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (kind, value)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			identity   TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_identity ON sessions(identity)`,
		`CREATE TABLE IF NOT EXISTS challenges (
			challenge_id TEXT PRIMARY KEY,
			nonce        TEXT NOT NULL,
			created_at   TIMESTAMP NOT NULL,
			expires_at   TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS departures (
			identity TEXT NOT NULL,
			table_id TEXT NOT NULL,
			chips    INTEGER NOT NULL,
			left_at  TIMESTAMP NOT NULL,
			PRIMARY KEY (identity, table_id)
		)`,
		`CREATE TABLE IF NOT EXISTS abuse_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			identity   TEXT NOT NULL DEFAULT '',
			ip         TEXT NOT NULL DEFAULT '',
			kind       TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// --- hand archive (game.Archiver) ---

// SaveHand archives a completed hand and its per-player rows in one
// transaction.
func (s *Store) SaveHand(rec *game.HandRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: save hand: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO hands (table_id, hand_no, started_at, completed_at,
			small_blind, big_blind, button_seat, pot_total, community, history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TableID, rec.HandID, rec.StartedAt, rec.CompletedAt,
		rec.SmallBlind, rec.BigBlind, rec.ButtonSeat, rec.PotTotal,
		deck.FormatCards(rec.Community), rec.History)
	if err != nil {
		return fmt.Errorf("store: save hand: %w", err)
	}
	handID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: save hand: %w", err)
	}

	for _, p := range rec.Players {
		_, err := tx.Exec(`
			INSERT INTO hand_players (hand_id, identity, handle, seat,
				starting_stack, ending_stack, total_committed, hole_cards,
				final_hand, position, actions, won_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			handID, p.Identity, p.Handle, p.Seat,
			p.StartingStack, p.EndingStack, p.TotalCommitted,
			deck.FormatCards(p.HoleCards), p.FinalHand, p.Position,
			p.Actions, p.WonAmount)
		if err != nil {
			return fmt.Errorf("store: save hand player: %w", err)
		}
	}

	return tx.Commit()
}

// UpdatePlayer upserts a player profile, applying the hand deltas.
func (s *Store) UpdatePlayer(u game.PlayerUpdate) error {
	now := s.now()
	_, err := s.db.Exec(`
		INSERT INTO players (identity, handle, chips, hands_played, hands_won,
			total_winnings, total_losses, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			handle = excluded.handle,
			chips = excluded.chips,
			hands_played = hands_played + excluded.hands_played,
			hands_won = hands_won + excluded.hands_won,
			total_winnings = total_winnings + excluded.total_winnings,
			total_losses = total_losses + excluded.total_losses,
			updated_at = excluded.updated_at`,
		u.Identity, u.Handle, u.Chips, u.HandsDelta, u.WonDelta,
		u.Winnings, u.Losses, now, now)
	if err != nil {
		return fmt.Errorf("store: update player: %w", err)
	}
	return nil
}

// PlayerProfile is the persisted per-identity record. Lud16 is the
// player's lightning address.
type PlayerProfile struct {
	Identity      string
	Handle        string
	Avatar        string
	Lud16         string
	Chips         int
	HandsPlayed   int
	HandsWon      int
	TotalWinnings int
	TotalLosses   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Player loads a profile by identity.
func (s *Store) Player(identity string) (*PlayerProfile, error) {
	p := &PlayerProfile{}
	err := s.db.QueryRow(`
		SELECT identity, handle, avatar, lud16, chips, hands_played, hands_won,
			total_winnings, total_losses, created_at, updated_at
		FROM players WHERE identity = ?`, identity).Scan(
		&p.Identity, &p.Handle, &p.Avatar, &p.Lud16, &p.Chips, &p.HandsPlayed,
		&p.HandsWon, &p.TotalWinnings, &p.TotalLosses, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load player: %w", err)
	}
	return p, nil
}

// UpdateProfile upserts the presentation fields of a profile without
// touching chips or counters.
func (s *Store) UpdateProfile(identity, handle, avatar, lud16 string) error {
	now := s.now()
	_, err := s.db.Exec(`
		INSERT INTO players (identity, handle, avatar, lud16, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			handle = excluded.handle,
			avatar = excluded.avatar,
			lud16 = excluded.lud16,
			updated_at = excluded.updated_at`,
		identity, handle, avatar, lud16, now, now)
	if err != nil {
		return fmt.Errorf("store: update profile: %w", err)
	}
	return nil
}

// HandRow is one archived hand.
type HandRow struct {
	ID          int64
	TableID     string
	HandNo      uint64
	StartedAt   time.Time
	CompletedAt time.Time
	SmallBlind  int
	BigBlind    int
	ButtonSeat  int
	PotTotal    int
	Community   string
	History     string
	Players     []HandPlayerRow
}

// HandPlayerRow is one participant of an archived hand.
type HandPlayerRow struct {
	Identity       string
	Handle         string
	Seat           int
	StartingStack  int
	EndingStack    int
	TotalCommitted int
	HoleCards      string
	FinalHand      string
	Position       string
	Actions        string
	WonAmount      int
}

// Hand loads one archived hand with its player rows.
func (s *Store) Hand(id int64) (*HandRow, error) {
	h := &HandRow{}
	err := s.db.QueryRow(`
		SELECT id, table_id, hand_no, started_at, completed_at,
			small_blind, big_blind, button_seat, pot_total, community, history
		FROM hands WHERE id = ?`, id).Scan(
		&h.ID, &h.TableID, &h.HandNo, &h.StartedAt, &h.CompletedAt,
		&h.SmallBlind, &h.BigBlind, &h.ButtonSeat, &h.PotTotal,
		&h.Community, &h.History)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load hand: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT identity, handle, seat, starting_stack, ending_stack,
			total_committed, hole_cards, final_hand, position, actions, won_amount
		FROM hand_players WHERE hand_id = ? ORDER BY seat`, id)
	if err != nil {
		return nil, fmt.Errorf("store: load hand players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p HandPlayerRow
		if err := rows.Scan(&p.Identity, &p.Handle, &p.Seat, &p.StartingStack,
			&p.EndingStack, &p.TotalCommitted, &p.HoleCards, &p.FinalHand,
			&p.Position, &p.Actions, &p.WonAmount); err != nil {
			return nil, fmt.Errorf("store: scan hand player: %w", err)
		}
		h.Players = append(h.Players, p)
	}
	return h, rows.Err()
}

// HandSummary is one line of a player's hand listing.
type HandSummary struct {
	ID          int64
	TableID     string
	HandNo      uint64
	CompletedAt time.Time
	PotTotal    int
	WonAmount   int
}

// HandsByIdentity lists a player's most recent hands, newest first.
func (s *Store) HandsByIdentity(identity string, limit int) ([]HandSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT h.id, h.table_id, h.hand_no, h.completed_at, h.pot_total, hp.won_amount
		FROM hand_players hp JOIN hands h ON h.id = hp.hand_id
		WHERE hp.identity = ?
		ORDER BY h.id DESC LIMIT ?`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list hands: %w", err)
	}
	defer rows.Close()

	var out []HandSummary
	for rows.Next() {
		var hs HandSummary
		if err := rows.Scan(&hs.ID, &hs.TableID, &hs.HandNo, &hs.CompletedAt,
			&hs.PotTotal, &hs.WonAmount); err != nil {
			return nil, fmt.Errorf("store: scan hand summary: %w", err)
		}
		out = append(out, hs)
	}
	return out, rows.Err()
}

// --- bans ---

// Ban kinds.
const (
	BanIdentity = "identity"
	BanIP       = "ip"
)

// Ban records a ban for a kind/value pair. Re-banning updates the
// reason.
func (s *Store) Ban(kind, value, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO bans (kind, value, reason, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, value) DO UPDATE SET reason = excluded.reason`,
		kind, value, reason, s.now())
	if err != nil {
		return fmt.Errorf("store: ban: %w", err)
	}
	return nil
}

// Unban removes a ban. Removing a non-existent ban is not an error.
func (s *Store) Unban(kind, value string) error {
	_, err := s.db.Exec(`DELETE FROM bans WHERE kind = ? AND value = ?`, kind, value)
	if err != nil {
		return fmt.Errorf("store: unban: %w", err)
	}
	return nil
}

// Banned reports whether the identity or IP is banned, with the reason.
func (s *Store) Banned(identity, ip string) (bool, string, error) {
	var reason string
	err := s.db.QueryRow(`
		SELECT reason FROM bans
		WHERE (kind = ? AND value = ?) OR (kind = ? AND value = ?)
		LIMIT 1`, BanIdentity, identity, BanIP, ip).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("store: ban lookup: %w", err)
	}
	return true, reason, nil
}

// --- sessions ---

// SaveSession stores a session token valid for ttl.
func (s *Store) SaveSession(token, identity string, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.Exec(`
		INSERT INTO sessions (token, identity, created_at, expires_at)
		VALUES (?, ?, ?, ?)`, token, identity, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

// SessionIdentity resolves a live session token to its identity.
// Expired tokens return ErrNotFound.
func (s *Store) SessionIdentity(token string) (string, error) {
	var identity string
	var expires time.Time
	err := s.db.QueryRow(`
		SELECT identity, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&identity, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: session lookup: %w", err)
	}
	if s.now().After(expires) {
		return "", ErrNotFound
	}
	return identity, nil
}

// PruneSessions deletes expired session rows.
func (s *Store) PruneSessions() error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, s.now())
	if err != nil {
		return fmt.Errorf("store: prune sessions: %w", err)
	}
	return nil
}

// --- auth challenges ---

// SaveChallenge stores a one-use challenge valid for ttl.
func (s *Store) SaveChallenge(challengeID, nonce string, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.Exec(`
		INSERT INTO challenges (challenge_id, nonce, created_at, expires_at)
		VALUES (?, ?, ?, ?)`, challengeID, nonce, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("store: save challenge: %w", err)
	}
	return nil
}

// ConsumeChallenge atomically removes a live challenge and returns its
// nonce. Returns ErrNotFound for unknown, expired or already-consumed
// challenges, which is what prevents replay.
func (s *Store) ConsumeChallenge(challengeID string) (string, error) {
	var nonce string
	err := s.db.QueryRow(`
		DELETE FROM challenges
		WHERE challenge_id = ? AND expires_at >= ?
		RETURNING nonce`, challengeID, s.now()).Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: consume challenge: %w", err)
	}
	return nonce, nil
}

// --- anti-rathole departures ---

// RecordDeparture remembers the chip count a player left a table with.
func (s *Store) RecordDeparture(identity, tableID string, chips int) error {
	_, err := s.db.Exec(`
		INSERT INTO departures (identity, table_id, chips, left_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identity, table_id) DO UPDATE SET
			chips = excluded.chips, left_at = excluded.left_at`,
		identity, tableID, chips, s.now())
	if err != nil {
		return fmt.Errorf("store: record departure: %w", err)
	}
	return nil
}

// LastDeparture returns the chips and time of a player's last recorded
// departure from a table, or ErrNotFound.
func (s *Store) LastDeparture(identity, tableID string) (int, time.Time, error) {
	var chips int
	var leftAt time.Time
	err := s.db.QueryRow(`
		SELECT chips, left_at FROM departures
		WHERE identity = ? AND table_id = ?`, identity, tableID).
		Scan(&chips, &leftAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, ErrNotFound
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("store: departure lookup: %w", err)
	}
	return chips, leftAt, nil
}

// --- abuse log ---

// LogAbuse appends a protocol-abuse row for later review.
func (s *Store) LogAbuse(identity, ip, kind, detail string) error {
	_, err := s.db.Exec(`
		INSERT INTO abuse_log (identity, ip, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`, identity, ip, kind, detail, s.now())
	if err != nil {
		return fmt.Errorf("store: log abuse: %w", err)
	}
	return nil
}

// --- admin stats ---

// Stats are coarse whole-server counters for the admin surface.
type Stats struct {
	Players     int
	HandsPlayed int
	TotalPots   int
}

// Stats returns whole-server counters.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`SELECT COUNT(*) FROM players`).Scan(&st.Players)
	if err != nil {
		return st, fmt.Errorf("store: stats: %w", err)
	}
	err = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(pot_total), 0) FROM hands`).
		Scan(&st.HandsPlayed, &st.TotalPots)
	if err != nil {
		return st, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}
