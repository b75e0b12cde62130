package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/anonhere/internal/dependencies/mocks"
)

type TrackerSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	tracker *Tracker
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.tracker = New(s.clock, 0)
}

func (s *TrackerSuite) TestEmptyRoomHasNoActiveUsers() {
	s.Zero(s.tracker.ActiveCount("global"))
}

func (s *TrackerSuite) TestTouchCountsUserOnce() {
	s.tracker.Touch("global", "alice")
	s.tracker.Touch("global", "alice")
	s.tracker.Touch("global", "bob")

	s.Equal(2, s.tracker.ActiveCount("global"))
}

func (s *TrackerSuite) TestRoomsAreSeparate() {
	s.tracker.Touch("global", "alice")
	s.tracker.Touch("123456", "bob")

	s.Equal(1, s.tracker.ActiveCount("global"))
	s.Equal(1, s.tracker.ActiveCount("123456"))
}

func (s *TrackerSuite) TestUserDecaysAfterWindow() {
	s.tracker.Touch("global", "alice")

	s.clock.Advance(9 * time.Second)
	s.Equal(1, s.tracker.ActiveCount("global"))

	s.clock.Advance(time.Second)
	s.Zero(s.tracker.ActiveCount("global"), "exactly one window old is stale")
}

func (s *TrackerSuite) TestTouchRefreshesPresence() {
	s.tracker.Touch("global", "alice")
	s.clock.Advance(8 * time.Second)
	s.tracker.Touch("global", "alice")
	s.clock.Advance(8 * time.Second)

	s.Equal(1, s.tracker.ActiveCount("global"))
}

func (s *TrackerSuite) TestForget() {
	s.tracker.Touch("global", "alice")
	s.tracker.Touch("global", "bob")

	s.tracker.Forget("global", "alice")
	s.tracker.Forget("nowhere", "alice")

	s.Equal(1, s.tracker.ActiveCount("global"))
}

func (s *TrackerSuite) TestPruneEvictsAcrossRooms() {
	s.tracker.Touch("global", "alice")
	s.tracker.Touch("123456", "bob")
	s.clock.Advance(5 * time.Second)
	s.tracker.Touch("123456", "carol")
	s.clock.Advance(6 * time.Second)

	s.Equal(2, s.tracker.Prune())
	s.Len(s.tracker.rooms, 1)
	s.Equal(1, s.tracker.ActiveCount("123456"))
}

func (s *TrackerSuite) TestCustomWindow() {
	tracker := New(s.clock, time.Minute)
	tracker.Touch("global", "alice")
	s.clock.Advance(30 * time.Second)

	s.Equal(1, tracker.ActiveCount("global"))
}
