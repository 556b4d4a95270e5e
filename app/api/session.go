package api

import (
	"fmt"
	"sync"

	"github.com/lysyi3m/rss-digest/app/aggregator"
	"github.com/lysyi3m/rss-digest/app/snapshot"
)

type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateLoading SessionState = "loading"
	StateReady   SessionState = "ready"
	StateFailed  SessionState = "failed"
)

// Session holds the last aggregation of the interactive UI so that changing
// the recency window does not fetch again.
type Session struct {
	mu      sync.RWMutex
	state   SessionState
	result  *aggregator.Result
	source  string
	done    int
	total   int
	message string
}

func NewSession() *Session {
	return &Session{state: StateIdle}
}

// Begin marks a run as started. It returns false when a run is already in progress.
func (s *Session) Begin(source string, total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLoading {
		return false
	}

	s.state = StateLoading
	s.source = source
	s.done = 0
	s.total = total
	s.message = ""
	return true
}

func (s *Session) Progress(done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = done
	s.total = total
}

func (s *Session) Finish(result *aggregator.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateReady
	s.result = result
	s.done = s.total
}

// Fail records an error. No partial results are shown afterwards.
func (s *Session) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateFailed
	s.result = nil
	s.message = message
}

func (s *Session) Result() *aggregator.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.result
}

func (s *Session) Status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := StatusResponse{
		State:  string(s.state),
		Done:   s.done,
		Total:  s.total,
		Source: s.source,
	}

	switch s.state {
	case StateLoading:
		status.Message = fmt.Sprintf("Loaded %d/%d feeds...", s.done, s.total)
	case StateFailed:
		status.Message = s.message
	case StateReady:
		status.Message = fmt.Sprintf("Loaded %d/%d feeds", s.total-len(s.result.FailedFeeds), s.total)
		status.FetchedAt = snapshot.FormatTime(s.result.FetchedAt)
	default:
		status.Message = "Upload an OPML file to get started."
	}

	return status
}
