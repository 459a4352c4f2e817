package turbo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/arweave/arweavetest"
	"go.permalaunch.dev/core/stores"
)

func TestUploadSendsSignedDataItem(t *testing.T) {
	var wallet = arweavetest.Wallet(t)
	var received arweave.ParsedItem

	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/tx/arweave", r.URL.Path)
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		var b, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, r.ContentLength, int64(len(b)))

		received, err = arweave.ParseDataItem(b)
		require.NoError(t, err)
		require.NoError(t, received.Verify())

		_ = json.NewEncoder(w).Encode(uploadResponse{ID: received.ID, Owner: wallet.Address()})
	}))
	defer srv.Close()

	var s, err = New(mustParseURL("turbo://"+srv.Listener.Addr().String()+"/?insecure=true"), wallet)
	require.NoError(t, err)
	require.Equal(t, "turbo", s.Provider())

	var opens int
	result, err := s.Upload(context.Background(), stores.UploadRequest{
		Body: func() (io.ReadCloser, error) {
			opens++
			return io.NopCloser(strings.NewReader("<html></html>")), nil
		},
		Size: 13,
		Tags: arweave.Tags{{Name: "Content-Type", Value: "text/html"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, opens) // Once to sign, and once to stream.
	require.Equal(t, received.ID, result.ID)
	require.Equal(t, []byte("<html></html>"), received.Data)
	require.Equal(t, arweave.Tags{{Name: "Content-Type", Value: "text/html"}}, received.Tags)
	require.Equal(t, wallet.Owner(), received.Owner)
}

func TestUploadErrors(t *testing.T) {
	var wallet = arweavetest.Wallet(t)
	var status int

	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if status == 0 {
			time.Sleep(200 * time.Millisecond)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	var s, err = New(mustParseURL("turbo://"+srv.Listener.Addr().String()+"/?insecure=true&token=arweave"), wallet)
	require.NoError(t, err)

	var req = stores.UploadRequest{
		Body: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("x")), nil },
		Size: 1,
		Tags: arweave.Tags{{Name: "Content-Type", Value: "text/plain"}},
	}

	status = http.StatusPaymentRequired
	_, err = s.Upload(context.Background(), req)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	status = http.StatusInternalServerError
	_, err = s.Upload(context.Background(), req)
	require.EqualError(t, err, "unexpected status 500 Internal Server Error: nope")

	status = 0
	var ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Upload(ctx, req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewValidation(t *testing.T) {
	var wallet = arweavetest.Wallet(t)

	_, err := New(mustParseURL("turbo://upload.example/"), nil)
	require.EqualError(t, err, "turbo store requires a signing wallet")

	_, err = New(mustParseURL("turbo:///"), wallet)
	require.Error(t, err)

	_, err = New(mustParseURL("turbo://upload.example/?unknown=arg"), wallet)
	require.Error(t, err)

	s, err := New(mustParseURL("turbo://upload.example/base/?token=solana"), wallet)
	require.NoError(t, err)
	require.Equal(t, "https://upload.example/base/v1/tx/solana", s.(*store).endpoint)
}

func mustParseURL(s string) *url.URL {
	var u, err = url.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}
