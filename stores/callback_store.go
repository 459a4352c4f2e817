package stores

import "context"

// CallbackStore implements Store for testing with customizable behavior.
// It allows tests to provide callback functions for each Store method.
type CallbackStore struct {
	ProviderFunc func() string
	UploadFunc   func(ctx context.Context, req UploadRequest) (UploadResult, error)
}

// Provider returns the provider name, or "callback" if ProviderFunc is nil.
func (c *CallbackStore) Provider() string {
	if c.ProviderFunc != nil {
		return c.ProviderFunc()
	}
	return "callback"
}

// Upload calls UploadFunc if set, otherwise returns an empty UploadResult.
func (c *CallbackStore) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if c.UploadFunc != nil {
		return c.UploadFunc(ctx, req)
	}
	return UploadResult{}, nil
}
