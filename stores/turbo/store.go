// Package turbo implements a Store which uploads signed ANS-104 data items to
// a Turbo bundling service, for durable storage on Arweave.
//
// Store URLs take the form turbo://upload.ardrive.io/ and accept query
// arguments described by StoreQueryArgs.
package turbo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	log "github.com/sirupsen/logrus"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
	"go.permalaunch.dev/core/stores/common"
)

// StoreQueryArgs contains fields that are parsed from the query arguments
// of a turbo:// store URL.
type StoreQueryArgs struct {
	// Token is the payment token whose upload endpoint is used. If empty, "arweave" is used.
	Token string
	// Insecure connects over plain HTTP rather than HTTPS. Intended for local services and tests.
	Insecure bool
}

// ErrInsufficientBalance is returned when the bundler refuses an upload
// because the signing wallet can't pay for it.
var ErrInsufficientBalance = errors.New("insufficient balance for upload")

type store struct {
	endpoint string
	signer   arweave.Signer
	client   *http.Client
}

// uploadResponse is the subset of the bundler's upload response which is used.
type uploadResponse struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

// New creates a new Turbo Store from the provided URL.
func New(ep *url.URL, signer arweave.Signer) (stores.Store, error) {
	if signer == nil {
		return nil, fmt.Errorf("turbo store requires a signing wallet")
	} else if ep.Host == "" {
		return nil, fmt.Errorf("turbo store URL %q is missing a host", ep.String())
	}
	var args StoreQueryArgs
	if err := common.ParseStoreArgs(ep, &args); err != nil {
		return nil, err
	}
	if args.Token == "" {
		args.Token = "arweave"
	}

	var u = url.URL{
		Scheme: "https",
		Host:   ep.Host,
		Path:   path.Join("/", ep.Path, "v1", "tx", args.Token),
	}
	if args.Insecure {
		u.Scheme = "http"
	}

	log.WithFields(log.Fields{
		"endpoint": u.String(),
	}).Debug("constructed new turbo upload client")

	return &store{
		endpoint: u.String(),
		signer:   signer,
		client:   &http.Client{},
	}, nil
}

func (s *store) Provider() string { return "turbo" }

func (s *store) Upload(ctx context.Context, req stores.UploadRequest) (stores.UploadResult, error) {
	var signed, err = arweave.DataItem{Tags: req.Tags}.Sign(s.signer, req.Body, req.Size)
	if err != nil {
		return stores.UploadResult{}, fmt.Errorf("building data item: %w", err)
	}

	body, err := req.Body()
	if err != nil {
		return stores.UploadResult{}, fmt.Errorf("opening content: %w", err)
	}
	defer body.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, signed.Reader(body))
	if err != nil {
		return stores.UploadResult{}, err
	}
	httpReq.ContentLength = signed.Len()
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return stores.UploadResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return stores.UploadResult{}, fmt.Errorf("%w: %s", ErrInsufficientBalance, readSnippet(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return stores.UploadResult{}, fmt.Errorf("unexpected status %s: %s", resp.Status, readSnippet(resp.Body))
	}

	var out uploadResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return stores.UploadResult{}, fmt.Errorf("decoding upload response: %w", err)
	}

	if out.ID == "" {
		out.ID = signed.ID
	} else if out.ID != signed.ID {
		log.WithFields(log.Fields{
			"signed":   signed.ID,
			"returned": out.ID,
		}).Warn("bundler returned a data item id differing from the signed id")
	}
	return stores.UploadResult{ID: out.ID}, nil
}

func readSnippet(r io.Reader) string {
	var b, _ = io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
