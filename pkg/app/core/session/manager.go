// Package session implements the trading-session state machine: encrypted
// per-instrument reference rates, the activity window, and the participant
// set. Session ids advance monotonically and are never reused; history is
// retained and immutable.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/util"
)

// Session holds one trading window. Rates are encrypted reference prices,
// one handle per configured currency pair, encrypted fresh for every session.
// TotalVolume is reserved; nothing aggregates into it yet.
type Session struct {
	ID           uint32
	Rates        []handle.Handle
	PricesSet    bool
	Active       bool
	StartTime    core.Timestamp
	EndTime      core.Timestamp
	Participants []common.Address
	TotalVolume  int64
}

// Live reports whether the session accepts orders at the given instant:
// active, prices initialized, and now inside the window.
func (s *Session) Live(now core.Timestamp) bool {
	return s.Active && s.PricesSet && now >= s.StartTime && now <= s.EndTime
}

// HasParticipant scans the ordered participant set. O(n) is fine at venue
// participant counts.
func (s *Session) HasParticipant(p common.Address) bool {
	for _, q := range s.Participants {
		if q == p {
			return true
		}
	}
	return false
}

// Manager advances a single current-session pointer over retained history.
type Manager struct {
	mu          sync.RWMutex
	duration    time.Duration
	instruments int

	current  uint32 // id the next/current session carries
	sessions map[uint32]*Session
	lastEnd  core.Timestamp // end of the most recently concluded session

	handles *handle.Store
	perms   *handle.Permissions
	self    common.Address
	clock   util.Clock
	log     *zap.SugaredLogger
}

func NewManager(duration time.Duration, instruments int, handles *handle.Store, perms *handle.Permissions, self common.Address, clock util.Clock, log *zap.SugaredLogger) *Manager {
	return &Manager{
		duration:    duration,
		instruments: instruments,
		current:     1,
		sessions:    make(map[uint32]*Session),
		handles:     handles,
		perms:       perms,
		self:        self,
		clock:       clock,
		log:         log,
	}
}

// Start opens a new session with one reference rate per instrument. Rejected
// while a session is live, during the cool-down after the previous session,
// or when the rate vector does not match the instrument count. Each rate is
// encrypted fresh and granted to the venue process.
func (m *Manager) Start(rates []int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now().Unix()

	cur, hasCur := m.sessions[m.current]
	if hasCur && cur.Live(now) {
		return nil, fmt.Errorf("start session: %w", core.ErrSessionActive)
	}
	// A window that lapsed without settlement or a forced end never touched
	// lastEnd; its EndTime still arms the cool-down.
	cooldownBase := m.lastEnd
	if hasCur && cur.EndTime > cooldownBase {
		cooldownBase = cur.EndTime
	}
	if cooldownBase != 0 && now < cooldownBase+int64(m.duration.Seconds()) {
		return nil, fmt.Errorf("start session: cool-down until %d: %w", cooldownBase+int64(m.duration.Seconds()), core.ErrTooEarly)
	}
	if len(rates) != m.instruments {
		return nil, fmt.Errorf("start session: %d rates for %d instruments: %w", len(rates), m.instruments, core.ErrInvalidInstrument)
	}

	// A concluded-but-unsettled session keeps its id; the new session takes
	// the next one. Ids are never reused.
	if hasCur {
		m.current++
	}

	hs := make([]handle.Handle, len(rates))
	for i, rate := range rates {
		h, err := m.handles.Encrypt(uint64(rate), fhe.Uint64)
		if err != nil {
			return nil, fmt.Errorf("start session: encrypt rate %d: %w", i, err)
		}
		m.perms.Grant(h, m.self, handle.Persistent)
		hs[i] = h
	}

	s := &Session{
		ID:        m.current,
		Rates:     hs,
		PricesSet: true,
		Active:    true,
		StartTime: now,
		EndTime:   now + int64(m.duration.Seconds()),
	}
	m.sessions[s.ID] = s

	if m.log != nil {
		m.log.Infow("session_started", "session", s.ID, "start", s.StartTime, "end", s.EndTime)
	}
	return s, nil
}

// IsLive is the precondition gate the order book uses.
func (m *Manager) IsLive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.sessions[m.current]
	return ok && cur.Live(m.clock.Now().Unix())
}

// Current returns the session under the current pointer, settled or not.
func (m *Manager) Current() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[m.current]
	return s, ok
}

func (m *Manager) CurrentID() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// History returns a past (or current) session record by id.
func (m *Manager) History(id uint32) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// HasRate reports whether a session holds a reference rate for the pair.
func (m *Manager) HasRate(id uint32, pair core.Instrument) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return ok && int(pair) < len(s.Rates) && s.Rates[pair] != 0
}

// AddParticipant inserts idempotently, preserving first-order insertion
// order. Called on a trader's first order in a session.
func (m *Manager) AddParticipant(p common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[m.current]
	if !ok {
		return fmt.Errorf("add participant: %w", core.ErrNoActiveSession)
	}
	if !s.HasParticipant(p) {
		s.Participants = append(s.Participants, p)
	}
	return nil
}

// EmergencyEnd forces the live session closed without settlement. Orders stay
// unexecuted; ending and settling are deliberately decoupled, so a later
// explicit settlement call can still sweep them.
func (m *Manager) EmergencyEnd() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now().Unix()
	s, ok := m.sessions[m.current]
	if !ok || !s.Live(now) {
		return fmt.Errorf("emergency end: %w", core.ErrNoActiveSession)
	}

	s.Active = false
	s.EndTime = now
	m.lastEnd = now

	if m.log != nil {
		m.log.Warnw("session_force_ended", "session", s.ID, "at", now)
	}
	return nil
}

// EndAndAdvance concludes the current session and moves the pointer to the
// next id. Called by the settlement engine after its sweep; never by anyone
// else.
func (m *Manager) EndAndAdvance() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[m.current]; ok {
		s.Active = false
		m.lastEnd = m.clock.Now().Unix()
	}
	m.current++
}
