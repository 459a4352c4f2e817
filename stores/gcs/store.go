// Package gcs implements a content-addressed mirror Store over Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
	"go.permalaunch.dev/core/stores/common"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// StoreQueryArgs are query arguments of a gs:// mirror URL, such as
// gs://bucket/site/?CacheControl=public,max-age=31536000.
type StoreQueryArgs struct {
	// CacheControl of mirrored objects. Content addressed objects never change,
	// so long lifetimes are safe.
	CacheControl string
}

type store struct {
	bucket, prefix string
	args           StoreQueryArgs
	client         *storage.Client
}

// New returns a mirror Store of the bucket and prefix of |ep|, authorized
// by Application Default Credentials. Mirrors don't sign, and ignore the Signer.
func New(ep *url.URL, _ arweave.Signer) (stores.Store, error) {
	var args StoreQueryArgs
	if err := common.ParseStoreArgs(ep, &args); err != nil {
		return nil, err
	}
	var client, err = newClient(context.Background())
	if err != nil {
		return nil, err
	}
	return &store{
		bucket: ep.Host,
		prefix: strings.TrimPrefix(ep.Path, "/"),
		args:   args,
		client: client,
	}, nil
}

func newClient(ctx context.Context) (*storage.Client, error) {
	var creds, err = google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("finding Google application credentials: %w", err)
	}
	client, err := storage.NewClient(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("building GCS client: %w", err)
	}
	log.WithField("project", creds.ProjectID).Debug("built GCS client")
	return client, nil
}

func (s *store) Provider() string { return "gcs" }

func (s *store) Upload(ctx context.Context, req stores.UploadRequest) (stores.UploadResult, error) {
	var id, err = common.ContentID(req.Body, req.Size)
	if err != nil {
		return stores.UploadResult{}, err
	}
	var obj = s.client.Bucket(s.bucket).Object(s.prefix + id)

	switch _, err = obj.Attrs(ctx); {
	case err == nil:
		log.WithFields(log.Fields{"bucket": s.bucket, "object": obj.ObjectName()}).Debug("mirror already holds object")
		return stores.UploadResult{ID: id}, nil
	case !errors.Is(err, storage.ErrObjectNotExist):
		return stores.UploadResult{}, err
	}

	body, err := req.Body()
	if err != nil {
		return stores.UploadResult{}, fmt.Errorf("opening content: %w", err)
	}
	defer body.Close()

	// Cancelling the Writer's context aborts a partial upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wc = obj.NewWriter(ctx)
	applyAttrs(&wc.ObjectAttrs, s.args, req.Tags)

	if _, err = io.Copy(wc, body); err == nil {
		err = wc.Close()
	}
	if err != nil {
		return stores.UploadResult{}, fmt.Errorf("writing gs://%s/%s: %w", s.bucket, obj.ObjectName(), err)
	}
	return stores.UploadResult{ID: id}, nil
}

func (s *store) IsAuthError(err error) bool {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	// A 404 of the bucket, rather than of an object, means it's misconfigured.
	return apiErr.Code == http.StatusForbidden ||
		(apiErr.Code == http.StatusNotFound && strings.Contains(apiErr.Message, "bucket"))
}

func applyAttrs(attrs *storage.ObjectAttrs, args StoreQueryArgs, tags arweave.Tags) {
	var contentType, metadata = common.SplitTags(tags)

	attrs.ContentType = contentType
	attrs.CacheControl = args.CacheControl
	if len(metadata) != 0 {
		attrs.Metadata = metadata
	}
}
