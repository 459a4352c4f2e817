// Package stores provides an abstraction over content-addressed stores to
// which deployments are uploaded.
package stores

import (
	"context"
	"errors"
	"io"
	"net/url"

	"go.permalaunch.dev/core/arweave"
)

// UploadRequest describes content to be uploaded.
type UploadRequest struct {
	// Body returns a reader of the content. It may be invoked more than once
	// (for example, to hash and then to stream the content), and each returned
	// reader must yield identical content.
	Body func() (io.ReadCloser, error)
	// Size is the exact length of the content, in bytes.
	Size int64
	// Tags attached to the stored content. Every upload carries at least a
	// Content-Type tag.
	Tags arweave.Tags
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	// ID is the content identifier assigned by the store.
	ID string
}

// Store provides an abstraction over content-addressed storage systems.
type Store interface {
	// Provider returns the name of the storage backend (e.g., "turbo", "s3", "gcs", "azure", "fs").
	Provider() string

	// Upload durably stores the content of |req| and returns its identifier.
	// Upload is atomic at the granularity of the identifier: either the full
	// content is stored and identified, or an error is returned. Deadlines and
	// cancellation are carried by |ctx|.
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
}

// AuthErrorClassifier is optionally implemented by Stores which can tell
// authorization failures apart from other errors.
type AuthErrorClassifier interface {
	// IsAuthError returns true if |err| is an authorization (AuthZ) failure,
	// such as a denied permission or a missing bucket.
	IsAuthError(err error) bool
}

// ErrUnauthorized wraps upload errors which a Store classifies as
// authorization failures.
var ErrUnauthorized = errors.New("store authorization failed")

// Constructor is a function that creates a Store instance from a URL.
// Stores which sign content use |signer|; others ignore it.
// Each storage backend provides its own constructor implementation.
type Constructor func(ep *url.URL, signer arweave.Signer) (Store, error)
