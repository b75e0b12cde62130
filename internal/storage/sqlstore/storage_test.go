package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/anonhere/internal/model"
)

// StorageSuite runs against whichever database open returns
type StorageSuite struct {
	suite.Suite
	open    func(t *testing.T) *Storage
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestSQLiteStorageSuite(t *testing.T) {
	suite.Run(t, &StorageSuite{open: func(t *testing.T) *Storage {
		store, err := New(SQLiteConfig(filepath.Join(t.TempDir(), "anonchat.db")))
		require.NoError(t, err)
		return store
	}})
}

func TestPostgresStorageSuite(t *testing.T) {
	url := os.Getenv("ANONHERE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("ANONHERE_TEST_POSTGRES_URL not set")
	}

	suite.Run(t, &StorageSuite{open: func(t *testing.T) *Storage {
		store, err := New(PostgresConfig(url))
		require.NoError(t, err)
		_, err = store.db.Exec(`TRUNCATE messages, rooms RESTART IDENTITY`)
		require.NoError(t, err)
		return store
	}})
}

func (s *StorageSuite) SetupTest() {
	s.storage = s.open(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) insert(username, content string, room model.RoomCode, ts time.Time) model.MessageID {
	id, err := s.storage.InsertMessage(s.ctx, &model.Message{
		Username:  username,
		Content:   content,
		RoomCode:  room,
		Timestamp: ts,
	})
	s.Require().NoError(err)
	return id
}

// Message tests

func (s *StorageSuite) TestInsertAssignsIncreasingIDs() {
	msg := &model.Message{Username: "alice", Content: "hi", Timestamp: s.now}
	id1, err := s.storage.InsertMessage(s.ctx, msg)
	s.Require().NoError(err)
	s.Equal(id1, msg.ID)

	id2 := s.insert("bob", "hey", model.GlobalRoom, s.now)
	s.Greater(id2, id1)
}

func (s *StorageSuite) TestGetMessageRoundTripsFields() {
	local := time.FixedZone("UTC-5", -5*60*60)
	ts := s.now.Add(123456789 * time.Nanosecond).In(local)
	id := s.insert("alice", "hello", "123456", ts)

	msg, err := s.storage.GetMessage(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("alice", msg.Username)
	s.Equal("hello", msg.Content)
	s.Equal(model.RoomCode("123456"), msg.RoomCode)
	s.True(msg.Timestamp.Equal(ts))
	s.Equal(time.UTC, msg.Timestamp.Location())
}

func (s *StorageSuite) TestGlobalRoomIsStoredAsNull() {
	id := s.insert("alice", "hello", model.GlobalRoom, s.now)

	var isNull bool
	err := s.storage.db.QueryRow(`SELECT room_code IS NULL FROM messages WHERE id = `+placeholder(s.storage), int64(id)).Scan(&isNull)
	s.Require().NoError(err)
	s.True(isNull)

	msg, err := s.storage.GetMessage(s.ctx, id)
	s.Require().NoError(err)
	s.True(msg.RoomCode.IsGlobal())
}

func (s *StorageSuite) TestGetMessageNotFound() {
	_, err := s.storage.GetMessage(s.ctx, 404)
	s.ErrorIs(err, model.ErrMessageNotFound)
}

func (s *StorageSuite) TestListMessagesOrderedByTimestampThenID() {
	c := s.insert("alice", "C", model.GlobalRoom, s.now.Add(2*time.Second))
	a := s.insert("alice", "A", model.GlobalRoom, s.now)
	b1 := s.insert("alice", "B1", model.GlobalRoom, s.now.Add(time.Second))
	b2 := s.insert("alice", "B2", model.GlobalRoom, s.now.Add(time.Second))

	msgs, err := s.storage.ListMessages(s.ctx, model.GlobalRoom)
	s.Require().NoError(err)
	s.Require().Len(msgs, 4)

	got := make([]model.MessageID, len(msgs))
	for i, m := range msgs {
		got[i] = m.ID
	}
	s.Equal([]model.MessageID{a, b1, b2, c}, got)
}

func (s *StorageSuite) TestListMessagesFiltersByRoom() {
	s.insert("alice", "global", model.GlobalRoom, s.now)
	s.insert("bob", "private", "123456", s.now)
	s.insert("carol", "elsewhere", "654321", s.now)

	global, err := s.storage.ListMessages(s.ctx, model.GlobalRoom)
	s.Require().NoError(err)
	s.Require().Len(global, 1)
	s.Equal("global", global[0].Content)

	private, err := s.storage.ListMessages(s.ctx, "123456")
	s.Require().NoError(err)
	s.Require().Len(private, 1)
	s.Equal("private", private[0].Content)
}

func (s *StorageSuite) TestListMessagesEmpty() {
	msgs, err := s.storage.ListMessages(s.ctx, "999999")
	s.Require().NoError(err)
	s.NotNil(msgs)
	s.Empty(msgs)
}

func (s *StorageSuite) TestDeleteMessage() {
	id := s.insert("alice", "bye", model.GlobalRoom, s.now)

	s.Require().NoError(s.storage.DeleteMessage(s.ctx, id))
	_, err := s.storage.GetMessage(s.ctx, id)
	s.ErrorIs(err, model.ErrMessageNotFound)

	s.NoError(s.storage.DeleteMessage(s.ctx, id), "deleting twice is not an error")
}

func (s *StorageSuite) TestDeleteMessagesBeforeIsStrict() {
	cutoff := s.now.Add(-time.Hour)
	old := s.insert("alice", "old", model.GlobalRoom, cutoff.Add(-time.Nanosecond))
	boundary := s.insert("alice", "boundary", model.GlobalRoom, cutoff)
	fresh := s.insert("alice", "fresh", "123456", s.now)

	deleted, err := s.storage.DeleteMessagesBefore(s.ctx, cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	_, err = s.storage.GetMessage(s.ctx, old)
	s.ErrorIs(err, model.ErrMessageNotFound)
	_, err = s.storage.GetMessage(s.ctx, boundary)
	s.NoError(err)
	_, err = s.storage.GetMessage(s.ctx, fresh)
	s.NoError(err)
}

func (s *StorageSuite) TestConcurrentInsertsAreAllVisible() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.storage.InsertMessage(s.ctx, &model.Message{Username: "u", Content: "x", Timestamp: s.now})
		}()
	}
	wg.Wait()

	msgs, err := s.storage.ListMessages(s.ctx, model.GlobalRoom)
	s.Require().NoError(err)
	s.Len(msgs, 20)
}

// Room tests

func (s *StorageSuite) TestCreateAndGetRoom() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, &model.Room{Code: "123456", Name: "Den", CreatedAt: s.now}))

	got, err := s.storage.GetRoom(s.ctx, "123456")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("123456"), got.Code)
	s.Equal("Den", got.Name)
	s.True(got.CreatedAt.Equal(s.now))
}

func (s *StorageSuite) TestGetRoomNotFound() {
	_, err := s.storage.GetRoom(s.ctx, "000000")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestCreateRoomRejectsLiveCode() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, &model.Room{Code: "123456", Name: "first", CreatedAt: s.now}))

	err := s.storage.CreateRoom(s.ctx, &model.Room{Code: "123456", Name: "second", CreatedAt: s.now})
	s.ErrorIs(err, model.ErrRoomCodeTaken)

	got, _ := s.storage.GetRoom(s.ctx, "123456")
	s.Equal("first", got.Name)
}

func (s *StorageSuite) TestDeleteRoomsBeforeReleasesCodeAndMessages() {
	cutoff := s.now.Add(-time.Hour)
	s.Require().NoError(s.storage.CreateRoom(s.ctx, &model.Room{Code: "111111", CreatedAt: cutoff.Add(-time.Minute)}))
	s.Require().NoError(s.storage.CreateRoom(s.ctx, &model.Room{Code: "222222", CreatedAt: s.now}))
	s.insert("alice", "in old room", "111111", s.now)
	s.insert("alice", "in new room", "222222", s.now)
	s.insert("alice", "global", model.GlobalRoom, s.now)

	released, err := s.storage.DeleteRoomsBefore(s.ctx, cutoff)
	s.Require().NoError(err)
	s.Equal([]model.RoomCode{"111111"}, released)

	_, err = s.storage.GetRoom(s.ctx, "111111")
	s.ErrorIs(err, model.ErrRoomNotFound)
	msgs, _ := s.storage.ListMessages(s.ctx, "111111")
	s.Empty(msgs)

	msgs, _ = s.storage.ListMessages(s.ctx, "222222")
	s.Len(msgs, 1)
	msgs, _ = s.storage.ListMessages(s.ctx, model.GlobalRoom)
	s.Len(msgs, 1)

	s.NoError(s.storage.CreateRoom(s.ctx, &model.Room{Code: "111111", CreatedAt: s.now}))
}

func (s *StorageSuite) TestDeleteRoomsBeforeNothingExpired() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, &model.Room{Code: "222222", CreatedAt: s.now}))

	released, err := s.storage.DeleteRoomsBefore(s.ctx, s.now)
	s.Require().NoError(err)
	s.Empty(released)
}

func (s *StorageSuite) TestSchemaCreationIsIdempotent() {
	s.NoError(s.storage.migrate(s.ctx))
}

func (s *StorageSuite) TestPing() {
	s.NoError(s.storage.Ping(s.ctx))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}

func placeholder(s *Storage) string {
	if s.q.driverName == postgresDialect.driverName {
		return "$1"
	}
	return "?"
}
