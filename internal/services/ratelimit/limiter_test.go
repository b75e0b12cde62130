package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/anonhere/internal/dependencies/mocks"
)

type LimiterSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	limiter *Limiter
	policy  Policy
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.limiter = New(s.clock)
	s.policy = Policy{Limit: 5, Window: 10 * time.Second}
}

func (s *LimiterSuite) TestAdmitsUpToLimit() {
	for i := 0; i < s.policy.Limit; i++ {
		s.True(s.limiter.Allow("1.2.3.4", ActionSend, s.policy), "call %d", i+1)
	}
	s.False(s.limiter.Allow("1.2.3.4", ActionSend, s.policy))
}

func (s *LimiterSuite) TestAdmitsAgainOneWindowAfterEarliestCall() {
	for i := 0; i < s.policy.Limit; i++ {
		s.limiter.Allow("1.2.3.4", ActionSend, s.policy)
		s.clock.Advance(time.Second)
	}
	// Earliest call was at t=0; now t=5s
	s.False(s.limiter.Allow("1.2.3.4", ActionSend, s.policy))

	s.clock.Set(time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC))
	s.True(s.limiter.Allow("1.2.3.4", ActionSend, s.policy))
	s.False(s.limiter.Allow("1.2.3.4", ActionSend, s.policy), "only the t=0 slot was freed")
}

func (s *LimiterSuite) TestRejectedCallsAreNotRecorded() {
	for i := 0; i < s.policy.Limit; i++ {
		s.limiter.Allow("1.2.3.4", ActionSend, s.policy)
	}
	s.clock.Advance(5 * time.Second)
	for i := 0; i < 20; i++ {
		s.False(s.limiter.Allow("1.2.3.4", ActionSend, s.policy))
	}

	s.clock.Advance(5 * time.Second)
	for i := 0; i < s.policy.Limit; i++ {
		s.True(s.limiter.Allow("1.2.3.4", ActionSend, s.policy), "retries while throttled must not extend the penalty")
	}
}

func (s *LimiterSuite) TestSteadyStateAdmitsLimitPerWindow() {
	admitted := 0
	// One attempt per 100ms for a minute
	for i := 0; i < 600; i++ {
		if s.limiter.Allow("1.2.3.4", ActionSend, s.policy) {
			admitted++
		}
		s.clock.Advance(100 * time.Millisecond)
	}
	s.Equal(6*s.policy.Limit, admitted)
}

func (s *LimiterSuite) TestKeysAreIndependent() {
	for i := 0; i < s.policy.Limit; i++ {
		s.limiter.Allow("1.2.3.4", ActionSend, s.policy)
	}
	s.False(s.limiter.Allow("1.2.3.4", ActionSend, s.policy))

	s.True(s.limiter.Allow("5.6.7.8", ActionSend, s.policy), "other identity")
	s.True(s.limiter.Allow("1.2.3.4", ActionDelete, s.policy), "other action")
}

func (s *LimiterSuite) TestConcurrentCallersAdmitExactlyLimit() {
	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.limiter.Allow("1.2.3.4", ActionSend, s.policy) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(s.policy.Limit), admitted.Load())
}

func (s *LimiterSuite) TestReleasedReservationDoesNotCount() {
	policy := DefaultPolicies()[ActionJoinFail]
	for i := 0; i < 10; i++ {
		ok, release := s.limiter.Reserve("1.2.3.4", ActionJoinFail, policy)
		s.Require().True(ok)
		release()
		release()
	}
	s.Zero(s.limiter.Len())

	for i := 0; i < policy.Limit; i++ {
		s.limiter.Allow("1.2.3.4", ActionJoinFail, policy)
	}
	ok, release := s.limiter.Reserve("1.2.3.4", ActionJoinFail, policy)
	s.False(ok)
	release()

	s.clock.Advance(policy.Window)
	ok, _ = s.limiter.Reserve("1.2.3.4", ActionJoinFail, policy)
	s.True(ok)
}

func (s *LimiterSuite) TestConcurrentReservationsAdmitExactlyLimit() {
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.limiter.Reserve("1.2.3.4", ActionJoinFail, s.policy); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(s.policy.Limit), admitted.Load())
}

func (s *LimiterSuite) TestExpiredEntriesBehindLaterOnesAreDropped() {
	// Wall clock steps back a minute after the first call
	s.limiter.Allow("1.2.3.4", ActionSend, s.policy)
	s.clock.Advance(-time.Minute)
	for i := 1; i < s.policy.Limit; i++ {
		s.limiter.Allow("1.2.3.4", ActionSend, s.policy)
	}

	// Five seconds after the first call: only it is still inside the window
	s.clock.Advance(time.Minute + 5*time.Second)
	for i := 1; i < s.policy.Limit; i++ {
		s.True(s.limiter.Allow("1.2.3.4", ActionSend, s.policy), "call %d", i)
	}
	s.False(s.limiter.Allow("1.2.3.4", ActionSend, s.policy))
}

func (s *LimiterSuite) TestPruneRemovesIdleKeys() {
	s.limiter.Allow("idle", ActionSend, s.policy)
	s.clock.Advance(6 * time.Minute)
	s.limiter.Allow("busy", ActionSend, s.policy)
	s.Equal(2, s.limiter.Len())

	removed := s.limiter.Prune(s.clock.Now().Add(-5 * time.Minute))

	s.Equal(1, removed)
	s.Equal(1, s.limiter.Len())
	s.True(s.limiter.Allow("busy", ActionSend, s.policy))
}

func (s *LimiterSuite) TestDefaultPolicies() {
	p := DefaultPolicies()
	s.Equal(Policy{Limit: 5, Window: 10 * time.Second}, p[ActionSend])
	s.Equal(Policy{Limit: 10, Window: time.Minute}, p[ActionDelete])
	s.Equal(Policy{Limit: 5, Window: time.Minute}, p[ActionJoinFail])
}
