package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
)

// State is the pipeline position of a session
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateGenerating State = "generating"
	StateRendering  State = "rendering"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateGenerating, StateFailed},
	StateGenerating: {StateRendering, StateFailed},
	StateRendering:  {StateDone, StateFailed},
	StateDone:       {StateValidating},
	StateFailed:     {StateValidating},
}

// CanTransition reports whether from → to is a legal move
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the per-browser context passed through the pipeline.
// It holds the current request, the last result and the pipeline state.
type Session struct {
	ID        string
	CreatedAt time.Time

	run sync.Mutex // held for the duration of one pipeline run

	mu      sync.RWMutex
	state   State
	request models.TripRequest
	result  *models.Result
	lastErr error
}

// New creates an idle session
func New(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		state:     StateIdle,
		request:   models.NewTripRequest(),
	}
}

// BeginRun blocks until no other run holds the session and returns the release func
func (s *Session) BeginRun() func() {
	s.run.Lock()
	return s.run.Unlock
}

// State returns the current pipeline state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transition moves the session to the next state
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, to) {
		return fmt.Errorf("invalid session transition %s -> %s", s.state, to)
	}
	s.state = to
	return nil
}

// Request returns the stored trip request
func (s *Session) Request() models.TripRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRequest(s.request)
}

// SetRequest stores a copy of req
func (s *Session) SetRequest(req models.TripRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request = copyRequest(req)
}

// Result returns the last successful result, or nil
func (s *Session) Result() *models.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// SetResult replaces the stored result and clears the last error
func (s *Session) SetResult(result *models.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.lastErr = nil
}

// LastError returns the error of the last failed run, or nil
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetError records the error of a failed run
func (s *Session) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func copyRequest(req models.TripRequest) models.TripRequest {
	if req.Interests != nil {
		req.Interests = append([]string(nil), req.Interests...)
	}
	return req
}
