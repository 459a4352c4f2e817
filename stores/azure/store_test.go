package azure

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/stretchr/testify/require"
	"go.permalaunch.dev/core/arweave"
)

func TestAzureStoreIsAuthError(t *testing.T) {
	store := &storeBase{}

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "ContainerNotFound should be auth error",
			err:      createAzureStorageError(azblob.ServiceCodeContainerNotFound, http.StatusNotFound),
			expected: true,
		},
		{
			name:     "AccountIsDisabled should be auth error",
			err:      createAzureStorageError(azblob.ServiceCodeAccountIsDisabled, http.StatusForbidden),
			expected: true,
		},
		{
			name:     "403 Forbidden via storage error should be auth error",
			err:      createAzureStorageError("OtherError", http.StatusForbidden),
			expected: true,
		},
		{
			name:     "BlobNotFound should not be auth error",
			err:      createAzureStorageError(azblob.ServiceCodeBlobNotFound, http.StatusNotFound),
			expected: false,
		},
		{
			name:     "Generic error should not be auth error",
			err:      errors.New("timeout"),
			expected: false,
		},
		{
			name:     "Nil error should not be auth error",
			err:      nil,
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, store.IsAuthError(test.err))
		})
	}
}

func TestUploadOptions(t *testing.T) {
	var opts = uploadOptions(StoreQueryArgs{AccessTier: "Cool"}, arweave.Tags{
		{Name: "Content-Type", Value: "image/png"},
		{Name: "App-Name", Value: "Permalaunch"},
		{Name: "GIT-HASH", Value: "abc123"},
	})
	require.Equal(t, "image/png", opts.BlobHTTPHeaders.ContentType)
	require.Equal(t, azblob.Metadata{"App_Name": "Permalaunch", "GIT_HASH": "abc123"}, opts.Metadata)
	require.Equal(t, azblob.AccessTierCool, opts.BlobAccessTier)

	require.Equal(t, "_9lives", metadataName("9lives"))
	require.Equal(t, "a9", metadataName("a9"))
}

func TestConstructorValidation(t *testing.T) {
	t.Setenv("AZURE_ACCOUNT_NAME", "")
	t.Setenv("AZURE_ACCOUNT_KEY", "")
	t.Setenv("AZURE_CLIENT_ID", "")
	t.Setenv("AZURE_CLIENT_SECRET", "")

	_, err := NewAccount(mustParseURL("azure://container/prefix/"), nil)
	require.EqualError(t, err, "AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY must be set for azure:// URLs")

	t.Setenv("AZURE_ACCOUNT_NAME", "acct")
	_, err = NewAccount(mustParseURL("azure://container/prefix/"), nil)
	require.EqualError(t, err, "AZURE_ACCOUNT_KEY must be set for azure:// URLs")

	_, err = NewAD(mustParseURL("azure-ad://tenant/account-only/"), nil)
	require.ErrorContains(t, err, "must take the form azure-ad://tenant/account/container/prefix/")

	_, err = NewAD(mustParseURL("azure-ad://tenant/account/container/"), nil)
	require.EqualError(t, err, "AZURE_CLIENT_ID and AZURE_CLIENT_SECRET must be set for azure-ad:// URLs")

	t.Setenv("AZURE_ACCOUNT_KEY", "a2V5")
	_, err = NewAccount(mustParseURL("azure://container/?bogus=1"), nil)
	require.Error(t, err)

	store, err := NewAccount(mustParseURL("azure://container/site/?AccessTier=Cool"), nil)
	require.NoError(t, err)
	require.Equal(t, location{account: "acct", container: "container", prefix: "site/"}, store.(*storeBase).location)
	require.Equal(t, "Cool", store.(*storeBase).args.AccessTier)
}

func TestParseADLocation(t *testing.T) {
	var tenant, loc, err = parseADLocation(mustParseURL("azure-ad://my-tenant/acct/site/a/b/"))
	require.NoError(t, err)
	require.Equal(t, "my-tenant", tenant)
	require.Equal(t, location{account: "acct", container: "site", prefix: "a/b/"}, loc)

	_, loc, err = parseADLocation(mustParseURL("azure-ad://my-tenant/acct/site"))
	require.NoError(t, err)
	require.Equal(t, location{account: "acct", container: "site"}, loc)
}

func TestTokenRefresher(t *testing.T) {
	var source = &fakeTokenSource{token: azcore.AccessToken{Token: "tok-1", ExpiresOn: time.Now().Add(time.Hour)}}
	var credential = azblob.NewTokenCredential("", nil)
	var refresh = tokenRefresher(source, "my-tenant")

	var next = refresh(credential)
	require.Equal(t, "tok-1", credential.Token())
	require.InDelta(t, float64(59*time.Minute), float64(next), float64(5*time.Second))
	require.Equal(t, "my-tenant", source.opts.TenantID)
	require.Equal(t, []string{storageScope}, source.opts.Scopes)

	// Failures retry after a minute, leaving the prior token in place.
	source.err = errors.New("unavailable")
	require.Equal(t, time.Minute, refresh(credential))
	require.Equal(t, "tok-1", credential.Token())

	// Tokens near expiry are refreshed after a minute.
	source.err, source.token = nil, azcore.AccessToken{Token: "tok-2", ExpiresOn: time.Now().Add(30 * time.Second)}
	require.Equal(t, time.Minute, refresh(credential))
	require.Equal(t, "tok-2", credential.Token())
}

type fakeTokenSource struct {
	token azcore.AccessToken
	err   error
	opts  policy.TokenRequestOptions
}

func (s *fakeTokenSource) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	s.opts = opts
	return s.token, s.err
}

func TestBlobURL(t *testing.T) {
	var s = &storeBase{
		location:   location{account: "acct", container: "site", prefix: "staging/"},
		blobDomain: "blob.core.windows.net",
		pipeline:   azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{}),
	}
	var u, err = s.buildBlobURL("abc")
	require.NoError(t, err)

	var got = u.URL()
	require.Equal(t, "https://acct.blob.core.windows.net/site/staging/abc", got.String())
}

// mockAzureStorageError implements the azblob.StorageError interface for testing
type mockAzureStorageError struct {
	serviceCode azblob.ServiceCodeType
	statusCode  int
}

func (e *mockAzureStorageError) Error() string                       { return string(e.serviceCode) }
func (e *mockAzureStorageError) ServiceCode() azblob.ServiceCodeType { return e.serviceCode }
func (e *mockAzureStorageError) Response() *http.Response {
	return &http.Response{StatusCode: e.statusCode}
}
func (e *mockAzureStorageError) Temporary() bool { return false }
func (e *mockAzureStorageError) Timeout() bool   { return false }

func createAzureStorageError(serviceCode azblob.ServiceCodeType, statusCode int) azblob.StorageError {
	return &mockAzureStorageError{
		serviceCode: serviceCode,
		statusCode:  statusCode,
	}
}

func mustParseURL(s string) *url.URL {
	var u, err = url.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}
