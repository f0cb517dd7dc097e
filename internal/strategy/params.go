package strategy

import (
	"context"
	"fmt"
	"sync"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

// ParameterStore owns the process-wide strategy parameters.
// Readers get copies; writers go through Update, which validates and persists.
type ParameterStore struct {
	mu     sync.RWMutex
	params domain.StrategyParameters
	repo   ports.ParametersRepository // optional
	logger ports.Logger
}

// NewParameterStore creates a store seeded with defaults.
func NewParameterStore(defaults domain.StrategyParameters, repo ports.ParametersRepository, logger ports.Logger) (*ParameterStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for parameter store")
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &ParameterStore{params: defaults, repo: repo, logger: logger}, nil
}

// Load replaces the defaults with the persisted parameters, if any.
// Invalid or unreadable documents leave the current parameters in place.
func (s *ParameterStore) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	loaded, err := s.repo.LoadParameters(ctx)
	if err != nil {
		return fmt.Errorf("loading strategy parameters: %w", err)
	}
	if loaded == nil {
		s.logger.Info(ctx, "No persisted strategy parameters, using defaults")
		return nil
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("persisted strategy parameters rejected: %w", err)
	}

	s.mu.Lock()
	s.params = *loaded
	s.mu.Unlock()
	s.logger.Info(ctx, "Strategy parameters loaded", map[string]interface{}{
		"pullbackAtr":  loaded.PullbackATR,
		"volumeWindow": loaded.VolumeWindow,
		"riskPct":      loaded.RiskPct,
	})
	return nil
}

// Get returns a copy of the current parameters.
func (s *ParameterStore) Get() domain.StrategyParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Update applies fn to a copy of the parameters. When fn reports a change the
// result is validated, installed and persisted. A persistence failure is
// returned but the new parameters stay in effect.
func (s *ParameterStore) Update(ctx context.Context, fn func(p *domain.StrategyParameters) bool) (domain.StrategyParameters, bool, error) {
	s.mu.Lock()
	next := s.params
	if !fn(&next) {
		s.mu.Unlock()
		return next, false, nil
	}
	if err := next.Validate(); err != nil {
		current := s.params
		s.mu.Unlock()
		return current, false, err
	}
	s.params = next
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveParameters(ctx, next); err != nil {
			return next, true, fmt.Errorf("persisting strategy parameters: %w", err)
		}
	}
	return next, true, nil
}
