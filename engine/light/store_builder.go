package light

import "go.uber.org/zap"

// StoreBuilderOption is a function that configures a Store during construction via NewStore.
type StoreBuilderOption func(*store)

// WithCapacity sets the maximum number of light records. Defaults to DefaultCapacity.
//
// Parameters:
//   - capacity: the record capacity
//
// Returns:
//   - StoreBuilderOption: a function that applies the capacity option to a store
func WithCapacity(capacity int) StoreBuilderOption {
	return func(s *store) {
		s.capacity = capacity
	}
}

// WithLogger sets the logger used by the store.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - StoreBuilderOption: a function that applies the logger option to a store
func WithLogger(l *zap.Logger) StoreBuilderOption {
	return func(s *store) {
		s.log = l
	}
}
