package moderation

import (
	"database/sql"
	"time"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
)

// InfractionType is the kind of moderation action an infraction recorded.
// Mute-like types only differ in which role the reversal removes, a ban
// reversal lifts the ban, warns and kicks have nothing to reverse.
type InfractionType int

const (
	InfractionWarn InfractionType = iota
	InfractionKick
	InfractionMute
	InfractionVoiceMute
	InfractionBan
)

func (t InfractionType) String() string {
	switch t {
	case InfractionWarn:
		return "warn"
	case InfractionKick:
		return "kick"
	case InfractionMute:
		return "mute"
	case InfractionVoiceMute:
		return "voice mute"
	case InfractionBan:
		return "ban"
	}

	return "unknown"
}

// Expires reports whether infractions of this type can be scheduled for reversal
func (t InfractionType) Expires() bool {
	switch t {
	case InfractionMute, InfractionVoiceMute, InfractionBan:
		return true
	}

	return false
}

type Infraction struct {
	ID        int64          `db:"id"`
	CreatedAt time.Time      `db:"created_at"`
	UserID    string         `db:"user_id"`
	AuthorID  string         `db:"author_id"`
	Type      InfractionType `db:"type"`
	Reason    string         `db:"reason"`
	ExpiresAt sql.NullTime   `db:"expires_at"`
	Active    bool           `db:"active"`
}

// InfractionStore is the persisted-infraction contract the reversal index
// depends on, split out so reversal firing can be tested without postgres
type InfractionStore interface {
	// SetInactive marks an infraction as no longer in effect
	SetInactive(id int64) error
	// ActiveExpiring returns all active infractions that have an expiry
	// time set, used to re-derive schedules on startup/reconnect
	ActiveExpiring() ([]*Infraction, error)
}

type sqlInfractionStore struct {
	DB *sqlx.DB
}

func (s *sqlInfractionStore) Create(inf *Infraction) error {
	const q = `INSERT INTO infractions (created_at, user_id, author_id, type, reason, expires_at, active)
	VALUES (now(), $1, $2, $3, $4, $5, true) RETURNING id`

	err := s.DB.QueryRow(q, inf.UserID, inf.AuthorID, inf.Type, inf.Reason, inf.ExpiresAt).Scan(&inf.ID)
	return errors.WithMessage(err, "insert infraction")
}

func (s *sqlInfractionStore) SetInactive(id int64) error {
	_, err := s.DB.Exec("UPDATE infractions SET active=false WHERE id=$1", id)
	return errors.WithMessage(err, "set inactive")
}

func (s *sqlInfractionStore) ActiveExpiring() ([]*Infraction, error) {
	var result []*Infraction
	err := s.DB.Select(&result, "SELECT * FROM infractions WHERE active AND expires_at IS NOT NULL")
	return result, errors.WithMessage(err, "select active expiring")
}

// ActiveByUser returns the newest active infraction of the given type for
// a user, sql.ErrNoRows when there is none
func (s *sqlInfractionStore) ActiveByUser(userID string, typ InfractionType) (*Infraction, error) {
	var inf Infraction
	err := s.DB.Get(&inf, "SELECT * FROM infractions WHERE active AND user_id=$1 AND type=$2 ORDER BY id DESC LIMIT 1", userID, typ)
	if err != nil {
		return nil, err
	}
	return &inf, nil
}
