package sqlstore

import "fmt"

// Driver names a supported SQL database
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// dialect is the full set of statements for one database. Timestamps are
// stored as unix nanoseconds so ordering and cutoffs are exact on every
// backend; the global room is a NULL room_code.
type dialect struct {
	driverName string
	schema     []string

	insertMessage        string
	getMessage           string
	listGlobalMessages   string
	listRoomMessages     string
	deleteMessage        string
	deleteMessagesBefore string

	insertRoom               string
	getRoom                  string
	selectRoomsBefore        string
	deleteRoomMessagesBefore string
	deleteRoomsBefore        string
}

const messageColumns = "id, username, content, room_code, created_at"

var sqliteDialect = dialect{
	driverName: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			room_code TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_code, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_created ON rooms (created_at)`,
	},

	insertMessage:        `INSERT INTO messages (username, content, room_code, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
	getMessage:           fmt.Sprintf(`SELECT %s FROM messages WHERE id = ?`, messageColumns),
	listGlobalMessages:   fmt.Sprintf(`SELECT %s FROM messages WHERE room_code IS NULL ORDER BY created_at, id`, messageColumns),
	listRoomMessages:     fmt.Sprintf(`SELECT %s FROM messages WHERE room_code = ? ORDER BY created_at, id`, messageColumns),
	deleteMessage:        `DELETE FROM messages WHERE id = ?`,
	deleteMessagesBefore: `DELETE FROM messages WHERE created_at < ?`,

	insertRoom:               `INSERT INTO rooms (code, name, created_at) VALUES (?, ?, ?) ON CONFLICT (code) DO NOTHING`,
	getRoom:                  `SELECT code, name, created_at FROM rooms WHERE code = ?`,
	selectRoomsBefore:        `SELECT code FROM rooms WHERE created_at < ? ORDER BY code`,
	deleteRoomMessagesBefore: `DELETE FROM messages WHERE room_code IN (SELECT code FROM rooms WHERE created_at < ?)`,
	deleteRoomsBefore:        `DELETE FROM rooms WHERE created_at < ?`,
}

var postgresDialect = dialect{
	driverName: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			code VARCHAR(6) PRIMARY KEY,
			name VARCHAR(120) NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(60) NOT NULL,
			content TEXT NOT NULL,
			room_code VARCHAR(6),
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_code, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_created ON rooms (created_at)`,
	},

	insertMessage:        `INSERT INTO messages (username, content, room_code, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
	getMessage:           fmt.Sprintf(`SELECT %s FROM messages WHERE id = $1`, messageColumns),
	listGlobalMessages:   fmt.Sprintf(`SELECT %s FROM messages WHERE room_code IS NULL ORDER BY created_at, id`, messageColumns),
	listRoomMessages:     fmt.Sprintf(`SELECT %s FROM messages WHERE room_code = $1 ORDER BY created_at, id`, messageColumns),
	deleteMessage:        `DELETE FROM messages WHERE id = $1`,
	deleteMessagesBefore: `DELETE FROM messages WHERE created_at < $1`,

	insertRoom:               `INSERT INTO rooms (code, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`,
	getRoom:                  `SELECT code, name, created_at FROM rooms WHERE code = $1`,
	selectRoomsBefore:        `SELECT code FROM rooms WHERE created_at < $1 ORDER BY code`,
	deleteRoomMessagesBefore: `DELETE FROM messages WHERE room_code IN (SELECT code FROM rooms WHERE created_at < $1)`,
	deleteRoomsBefore:        `DELETE FROM rooms WHERE created_at < $1`,
}

func dialectFor(d Driver) (dialect, error) {
	switch d {
	case DriverSQLite:
		return sqliteDialect, nil
	case DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", d)
	}
}
