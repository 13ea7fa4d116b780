package service

import (
	"sync"
	"time"
)

// AutosaveScheduler debounces partial saves per submission. Arm cancels any
// pending timer for the same submission and schedules a fresh one, so a
// burst of score changes collapses into a single save. Cancel is used when a
// submit supersedes the pending save.
type AutosaveScheduler struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[uint]*time.Timer
}

// NewAutosaveScheduler builds a scheduler with the given debounce delay.
func NewAutosaveScheduler(delay time.Duration) *AutosaveScheduler {
	return &AutosaveScheduler{
		delay:  delay,
		timers: make(map[uint]*time.Timer),
	}
}

// Arm schedules fn to run after the debounce delay, replacing any pending
// schedule for the same submission.
func (s *AutosaveScheduler) Arm(submissionID uint, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[submissionID]; ok {
		timer.Stop()
	}

	s.timers[submissionID] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, submissionID)
		s.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending save for the submission. Returns true when a
// timer was actually pending.
func (s *AutosaveScheduler) Cancel(submissionID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[submissionID]
	if !ok {
		return false
	}

	timer.Stop()
	delete(s.timers, submissionID)
	return true
}

// Stop cancels every pending save. Used on shutdown.
func (s *AutosaveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Pending reports whether a save is currently scheduled for the submission.
func (s *AutosaveScheduler) Pending(submissionID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[submissionID]
	return ok
}
