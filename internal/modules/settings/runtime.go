package settings

import (
	"fmt"
	"sync"
)

// Keys for the runtime-tunable settings. Everything else is startup config.
const (
	MaxSessionDurationHours    = "max_session_duration_hours"
	DodoUniquenessCheckEnabled = "dodo_uniqueness_check_enabled"
)

// Store holds settings that admins can flip at runtime without a restart.
// Values are typed at read time; a key holds whatever type it was seeded
// with.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewStore() *Store {
	return &Store{values: make(map[string]any)}
}

// NewDefaultStore seeds the settings the session module reads.
func NewDefaultStore(maxSessionDurationHours int, dodoUniquenessCheck bool) *Store {
	s := NewStore()
	s.values[MaxSessionDurationHours] = maxSessionDurationHours
	s.values[DodoUniquenessCheckEnabled] = dodoUniquenessCheck
	return s
}

func (s *Store) Int(key string, fallback int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if value, ok := s.values[key].(int); ok {
		return value
	}

	return fallback
}

func (s *Store) Bool(key string, fallback bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if value, ok := s.values[key].(bool); ok {
		return value
	}

	return fallback
}

// Set replaces a known key. Unknown keys are rejected, and a seeded key
// never changes type.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.values[key]
	if !ok {
		return fmt.Errorf("unknown setting: '%s'", key)
	}

	switch current.(type) {
	case int:
		intValue, ok := value.(int)
		if !ok {
			// JSON numbers arrive as float64.
			floatValue, okFloat := value.(float64)
			if !okFloat || floatValue != float64(int(floatValue)) {
				return fmt.Errorf("setting '%s' expects an integer", key)
			}
			intValue = int(floatValue)
		}
		s.values[key] = intValue
	case bool:
		boolValue, ok := value.(bool)
		if !ok {
			return fmt.Errorf("setting '%s' expects a boolean", key)
		}
		s.values[key] = boolValue
	default:
		s.values[key] = value
	}

	return nil
}

// Snapshot returns a copy for read-only display.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]any, len(s.values))
	for key, value := range s.values {
		snapshot[key] = value
	}

	return snapshot
}
