package model

import (
	"sync"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Models hold it by composition.
type StateManager struct {
	Fitted bool
	mu     sync.RWMutex

	NFeatures   int
	NTargets    int
	SamplesSeen int
	EpochsRun   int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NTargets = 0
	s.SamplesSeen = 0
	s.EpochsRun = 0
}

// SetDimensions sets the feature and target widths the model was fitted with.
func (s *StateManager) SetDimensions(nFeatures, nTargets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NTargets = nTargets
}

// GetDimensions returns the feature and target widths.
func (s *StateManager) GetDimensions() (nFeatures, nTargets int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NTargets
}

// AddSamples records n more training rows.
func (s *StateManager) AddSamples(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SamplesSeen += n
}

// NextEpoch increments and returns the epoch counter. The counter survives
// across training calls.
func (s *StateManager) NextEpoch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EpochsRun++
	return s.EpochsRun
}

// Epoch returns the number of completed epochs.
func (s *StateManager) Epoch() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EpochsRun
}

// RequireFitted returns a NotFittedError if the model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// ModelState represents the persisted part of a StateManager.
type ModelState struct {
	Fitted      bool `json:"fitted"`
	NFeatures   int  `json:"n_features,omitempty"`
	NTargets    int  `json:"n_targets,omitempty"`
	SamplesSeen int  `json:"samples_seen,omitempty"`
	Epoch       int  `json:"epoch"`
}

// GetState returns the current state as a ModelState struct.
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ModelState{
		Fitted:      s.Fitted,
		NFeatures:   s.NFeatures,
		NTargets:    s.NTargets,
		SamplesSeen: s.SamplesSeen,
		Epoch:       s.EpochsRun,
	}
}

// SetState sets the state from a ModelState struct.
func (s *StateManager) SetState(state ModelState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Fitted = state.Fitted
	s.NFeatures = state.NFeatures
	s.NTargets = state.NTargets
	s.SamplesSeen = state.SamplesSeen
	s.EpochsRun = state.Epoch
}

// WithState executes fn with the state locked for reading.
func (s *StateManager) WithState(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// WithStateMut executes fn with the state locked for writing.
func (s *StateManager) WithStateMut(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
