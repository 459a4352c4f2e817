package stores

import (
	"context"
	"fmt"
	"time"
)

// InstrumentedStore wraps a Store implementation with metrics.
type InstrumentedStore struct {
	Key   string // Redacted store URL from which this InstrumentedStore was built.
	Store Store
}

var _ Store = (*InstrumentedStore)(nil) // InstrumentedStore is-a Store.

// NewInstrumentedStore returns an InstrumentedStore of |store|, labeled by |key|.
func NewInstrumentedStore(key string, store Store) *InstrumentedStore {
	return &InstrumentedStore{Key: key, Store: store}
}

// Provider returns the name of the wrapped storage backend.
func (s *InstrumentedStore) Provider() string { return s.Store.Provider() }

// Upload delegates to the wrapped Store, recording the outcome.
// Authorization failures are wrapped with ErrUnauthorized.
func (s *InstrumentedStore) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	var started = time.Now()
	var result, err = s.Store.Upload(ctx, req)

	var status = "success"
	if c, ok := s.Store.(AuthErrorClassifier); ok && err != nil && c.IsAuthError(err) {
		status = "auth_error"
		err = fmt.Errorf("%w: %w", ErrUnauthorized, err)
	} else if err != nil {
		status = "error"
	} else {
		storeUploadBytes.WithLabelValues(s.Key).Observe(float64(req.Size))
	}

	storeUploadTotal.WithLabelValues(s.Key, status).Inc()
	storeUploadDuration.WithLabelValues(s.Key, status).Observe(time.Since(started).Seconds())

	return result, err
}
