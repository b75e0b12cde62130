package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mcoot/anonhere/internal/model"
	"github.com/mcoot/anonhere/internal/storage"
)

// Storage is a SQL implementation of the storage interface, backed by
// SQLite or Postgres depending on the configured driver
type Storage struct {
	db *sql.DB
	q  dialect
}

// New opens the database, verifies the connection and creates the schema
func New(cfg Config) (*Storage, error) {
	q, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(q.driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	s := &Storage{db: db, q: q}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) migrate(ctx context.Context) error {
	for _, stmt := range s.q.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func roomColumn(code model.RoomCode) sql.NullString {
	if code.IsGlobal() {
		return sql.NullString{}
	}
	return sql.NullString{String: string(code), Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*model.Message, error) {
	var (
		msg  model.Message
		room sql.NullString
		ts   int64
	)
	if err := row.Scan(&msg.ID, &msg.Username, &msg.Content, &room, &ts); err != nil {
		return nil, err
	}
	if room.Valid {
		msg.RoomCode = model.RoomCode(room.String)
	}
	msg.Timestamp = fromUnix(ts)
	return &msg, nil
}

// Message operations

func (s *Storage) InsertMessage(ctx context.Context, msg *model.Message) (model.MessageID, error) {
	var id model.MessageID
	err := s.db.QueryRowContext(ctx, s.q.insertMessage,
		msg.Username, msg.Content, roomColumn(msg.RoomCode), toUnix(msg.Timestamp),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id
	return id, nil
}

func (s *Storage) ListMessages(ctx context.Context, room model.RoomCode) ([]*model.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if room.IsGlobal() {
		rows, err = s.db.QueryContext(ctx, s.q.listGlobalMessages)
	} else {
		rows, err = s.db.QueryContext(ctx, s.q.listRoomMessages, string(room))
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []*model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *Storage) GetMessage(ctx context.Context, id model.MessageID) (*model.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx, s.q.getMessage, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *Storage) DeleteMessage(ctx context.Context, id model.MessageID) error {
	if _, err := s.db.ExecContext(ctx, s.q.deleteMessage, int64(id)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *Storage) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q.deleteMessagesBefore, toUnix(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	return res.RowsAffected()
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	res, err := s.db.ExecContext(ctx, s.q.insertRoom, string(room.Code), room.Name, toUnix(room.CreatedAt))
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrRoomCodeTaken
	}
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	var (
		room model.Room
		raw  string
		ts   int64
	)
	err := s.db.QueryRowContext(ctx, s.q.getRoom, string(code)).Scan(&raw, &room.Name, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	room.Code = model.RoomCode(raw)
	room.CreatedAt = fromUnix(ts)
	return &room, nil
}

func (s *Storage) DeleteRoomsBefore(ctx context.Context, cutoff time.Time) ([]model.RoomCode, error) {
	bound := toUnix(cutoff)
	var released []model.RoomCode

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.q.selectRoomsBefore, bound)
		if err != nil {
			return err
		}
		for rows.Next() {
			var code string
			if err := rows.Scan(&code); err != nil {
				_ = rows.Close()
				return err
			}
			released = append(released, model.RoomCode(code))
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if len(released) == 0 {
			return nil
		}

		// Messages go first so a reissued code starts with no history
		if _, err := tx.ExecContext(ctx, s.q.deleteRoomMessagesBefore, bound); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q.deleteRoomsBefore, bound)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete expired rooms: %w", err)
	}
	return released, nil
}

// Lifecycle

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}
