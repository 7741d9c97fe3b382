package store

import (
	"context"
	"fmt"
)

const (
	StatusConnected = "connected"
	StatusFailed    = "failed"
)

// ConnectionStatus is the outcome of TestConnection.
type ConnectionStatus struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details"`
}

// InitIndexes provisions the backend's indexes and then every optional index.
// A primary index failure is returned; optional failures are logged and dropped.
func (s *Store) InitIndexes(ctx context.Context) error {
	if err := s.backend.EnsureIndexes(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to initialize indexes")
		return fmt.Errorf("ensure %s indexes: %w", s.backend.Name(), err)
	}

	for _, idx := range s.optional {
		if idx.Ensure == nil {
			continue
		}
		if err := idx.Ensure(ctx); err != nil {
			s.logger.Debug().Err(err).Str("index", idx.Name).Msg("optional index creation skipped")
		}
	}

	s.logger.Info().Msg("indexes initialized")
	return nil
}

// TestConnection never returns an error; failures are described in the status.
func (s *Store) TestConnection(ctx context.Context) ConnectionStatus {
	details, err := s.backend.Status(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("connection test failed")
		return ConnectionStatus{
			Status: StatusFailed,
			Details: map[string]any{
				"backend": s.backend.Name(),
				"error":   err.Error(),
			},
		}
	}

	if details == nil {
		details = map[string]any{}
	}
	details["backend"] = s.backend.Name()
	return ConnectionStatus{Status: StatusConnected, Details: details}
}
