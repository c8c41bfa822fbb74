// Package model provides fitted-state bookkeeping, gob persistence and
// weight export shared by the estimators.
package model

import (
	"sync"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// StateManager manages the fitted state of an estimator in a thread-safe manner.
// Exported fields are carried through gob snapshots.
type StateManager struct {
	Fitted bool
	mu     sync.RWMutex

	// NAccessions is the number of distinct training accessions seen by Fit.
	NAccessions int
	// NObservations is the number of training rows seen by Fit.
	NObservations int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the estimator has been fitted.
func (s *StateManager) IsFitted() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the estimator as fitted with the training dimensions.
func (s *StateManager) SetFitted(nAccessions, nObservations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NAccessions = nAccessions
	s.NObservations = nObservations
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NAccessions = 0
	s.NObservations = 0
}

// Dimensions returns the training dimensions recorded by SetFitted.
func (s *StateManager) Dimensions() (nAccessions, nObservations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NAccessions, s.NObservations
}

// RequireFitted returns a NotFittedError if the estimator has not been fitted.
func (s *StateManager) RequireFitted(name, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(name, method)
	}
	return nil
}
