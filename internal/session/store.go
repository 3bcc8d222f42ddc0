package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs. The interface is
// defined here, by the consumer, so unit tests can substitute a mock.
// Each call acquires and releases its connection internally, so there is
// no connection to leak on error paths.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists sessions in PostgreSQL. Safe for concurrent use;
// per-identifier serialization is provided by the primary key, not by
// application-level locking.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store backed by db. A nil logger falls back to
// slog.Default().
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const (
	insertSessionSQL = `
		INSERT INTO user_sessions (phone_number, conversation_state)
		VALUES ($1, $2)
		ON CONFLICT (phone_number) DO NOTHING`

	selectSessionSQL = `
		SELECT phone_number, user_name, favorite_song, conversation_state, last_interaction
		FROM user_sessions
		WHERE phone_number = $1`

	updateStateSQL = `
		UPDATE user_sessions
		SET conversation_state = $1, last_interaction = now()
		WHERE phone_number = $2`

	updateStateNameSQL = `
		UPDATE user_sessions
		SET conversation_state = $1, user_name = $2, last_interaction = now()
		WHERE phone_number = $3`

	updateStateSongSQL = `
		UPDATE user_sessions
		SET conversation_state = $1, favorite_song = $2, last_interaction = now()
		WHERE phone_number = $3`
)

// GetOrCreate returns the session for phone, inserting a fresh row in
// state initial if none exists. The insert uses ON CONFLICT DO NOTHING,
// so when two requests race on an unseen number one insert wins and the
// other observes the committed row on the follow-up select.
func (s *Store) GetOrCreate(ctx context.Context, phone string) (*Session, error) {
	if _, err := s.db.Exec(ctx, insertSessionSQL, phone, string(StateInitial)); err != nil {
		return nil, fmt.Errorf("inserting session for %s: %w", phone, err)
	}

	var sess Session
	err := s.db.QueryRow(ctx, selectSessionSQL, phone).Scan(
		&sess.PhoneNumber,
		&sess.UserName,
		&sess.FavoriteSong,
		&sess.ConversationState,
		&sess.LastInteraction,
	)
	if err != nil {
		return nil, fmt.Errorf("loading session for %s: %w", phone, err)
	}

	s.logger.Debug("loaded session", "phone", phone, "state", sess.ConversationState)
	return &sess, nil
}

// Update sets the conversation state for phone, applies at most one
// optional field per the tagged instruction, and refreshes
// last_interaction. An update affecting anything other than exactly one
// row returns ErrSessionVanished.
func (s *Store) Update(ctx context.Context, phone string, next State, upd FieldUpdate) error {
	var (
		tag pgconn.CommandTag
		err error
	)

	switch upd.Kind {
	case FieldUserName:
		tag, err = s.db.Exec(ctx, updateStateNameSQL, string(next), upd.Value, phone)
	case FieldFavoriteSong:
		tag, err = s.db.Exec(ctx, updateStateSongSQL, string(next), upd.Value, phone)
	default:
		tag, err = s.db.Exec(ctx, updateStateSQL, string(next), phone)
	}
	if err != nil {
		return fmt.Errorf("updating session for %s: %w", phone, err)
	}

	if tag.RowsAffected() != 1 {
		return fmt.Errorf("updating session for %s: %w (rows affected: %d)",
			phone, ErrSessionVanished, tag.RowsAffected())
	}

	s.logger.Debug("updated session", "phone", phone, "state", next, "field", upd.Kind)
	return nil
}
