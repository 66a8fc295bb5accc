package vault

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
)

// Watchdog timing. Variables so tests can shorten them.
var (
	// PollInterval is how often the watchdog checks for inactivity.
	PollInterval = 1 * time.Second

	// InactivityTimeout is the idle time after which a session expires.
	InactivityTimeout = 30 * time.Second
)

// SessionState is the lifecycle state of a Session.
//
//	Running -> Expired -> Stopped
//	Running -> Stopped
type SessionState int32

const (
	SessionRunning SessionState = iota
	SessionExpired
	SessionStopped
)

// String returns a human-readable representation of the state
func (s SessionState) String() string {
	switch s {
	case SessionRunning:
		return "running"
	case SessionExpired:
		return "expired"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TickerFunc starts a periodic tick source and returns its channel and a stop
// function. The default wraps time.NewTicker.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Session is one authenticated login. It owns the session key and the
// inactivity watchdog goroutine.
type Session struct {
	id           string
	started      time.Time
	lastActivity atomic.Int64 // unix nanos
	now          func() time.Time

	mu    sync.Mutex // guards state and key
	state SessionState
	key   []byte

	expired chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func newSession(key []byte, now func() time.Time) *Session {
	s := &Session{
		id:      uuid.NewString(),
		started: now(),
		now:     now,
		state:   SessionRunning,
		key:     key,
		expired: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.lastActivity.Store(s.started.UnixNano())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns the login time.
func (s *Session) StartedAt() time.Time {
	return s.started
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Expired delivers exactly one value if the session times out. Nothing is
// ever sent after a voluntary logout.
func (s *Session) Expired() <-chan struct{} {
	return s.expired
}

// Done is closed when the watchdog goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// LastActivity returns the time of the most recent recorded activity.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(s.now().UnixNano())
}

// startWatchdog launches the inactivity poller.
func (s *Session) startWatchdog(newTicker TickerFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ticks, stopTicker := newTicker(PollInterval)
	go s.watch(ctx, ticks, stopTicker)
}

func (s *Session) watch(ctx context.Context, ticks <-chan time.Time, stopTicker func()) {
	defer close(s.done)
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			idle := s.now().Sub(s.LastActivity())
			if idle <= InactivityTimeout {
				continue
			}
			if s.expire() {
				s.expired <- struct{}{}
			}
			return
		}
	}
}

// expire moves Running to Expired. It returns false if the session already
// left Running, so a concurrent logout wins and no event is sent.
func (s *Session) expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionRunning {
		return false
	}
	s.state = SessionExpired
	return true
}

// stop moves the session to Stopped, wipes the key and waits for the
// watchdog to exit. It returns the state it left, or false if already stopped.
func (s *Session) stop() (SessionState, bool) {
	s.mu.Lock()
	prev := s.state
	if prev == SessionStopped {
		s.mu.Unlock()
		return prev, false
	}
	s.state = SessionStopped
	if s.key != nil {
		crypto.UnlockMemory(s.key)
		crypto.SecureWipe(s.key)
		s.key = nil
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return prev, true
}

// withKey runs fn with the session key while the session is Running.
func (s *Session) withKey(fn func(key []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SessionExpired:
		return ErrSessionExpired
	case SessionStopped:
		return ErrNoSession
	}
	return fn(s.key)
}
