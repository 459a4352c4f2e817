package stores

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.permalaunch.dev/core/arweave"
)

var (
	constructors   = make(map[string]Constructor)
	constructorsMu sync.RWMutex
)

// RegisterProviders registers store constructors for different storage schemes.
// This should be called during initialization to register all available store types.
func RegisterProviders(providers map[string]Constructor) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()

	for scheme, constructor := range providers {
		constructors[scheme] = constructor
	}
}

// GetProviders returns a copy of the currently registered store constructors.
// This is useful for tests that need to preserve and restore providers.
func GetProviders() map[string]Constructor {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()

	var copy = make(map[string]Constructor, len(constructors))
	for scheme, constructor := range constructors {
		copy[scheme] = constructor
	}
	return copy
}

// Open parses the store URL |rawURL| and constructs an instrumented Store
// using the constructor registered for its scheme.
func Open(rawURL string, signer arweave.Signer) (*InstrumentedStore, error) {
	var ep, err = url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing store URL: %w", err)
	}

	constructorsMu.RLock()
	constructor, ok := constructors[ep.Scheme]
	constructorsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported content store scheme: %q", ep.Scheme)
	}
	store, err := constructor(ep, signer)
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStore(redact(ep), store), nil
}

// redact drops query arguments and user info from the store URL, so that it
// may be used as a metric label and log field.
func redact(ep *url.URL) string {
	var u = *ep
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

var (
	storeUploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permalaunch_store_upload_duration_seconds",
		Help:    "Duration of content store uploads in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"store", "status"})

	storeUploadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permalaunch_store_upload_total",
		Help: "Total number of content store uploads",
	}, []string{"store", "status"})

	storeUploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permalaunch_store_upload_bytes",
		Help:    "Size of content uploaded to stores in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~1GB
	}, []string{"store"})
)
