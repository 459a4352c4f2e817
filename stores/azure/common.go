// Package azure implements content-addressed mirror Stores over Azure Blob
// Storage, authenticated by shared key (azure://) or Azure AD (azure-ad://).
package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/Azure/azure-storage-blob-go/azblob"
	log "github.com/sirupsen/logrus"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
	"go.permalaunch.dev/core/stores/common"
)

// StoreQueryArgs contains fields that are parsed from the query arguments
// of an azure:// or azure-ad:// store URL.
type StoreQueryArgs struct {
	// AccessTier applied to uploaded blobs (eg, "Cool"). By default, the
	// account's default tier is used.
	AccessTier string
}

// location of stored blobs.
type location struct {
	account   string // Storage account, akin to an S3 bucket's namespace.
	container string
	prefix    string // Prefix of blob names within the container.
}

type storeBase struct {
	location
	args       StoreQueryArgs
	blobDomain string // Eg, blob.core.windows.net.
	pipeline   pipeline.Pipeline
}

func newStore(ep *url.URL, loc location, credential azblob.Credential, auth string) (stores.Store, error) {
	var s = &storeBase{
		location:   loc,
		blobDomain: blobDomain(),
		pipeline:   azblob.NewPipeline(credential, azblob.PipelineOptions{}),
	}
	if err := common.ParseStoreArgs(ep, &s.args); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account":    loc.account,
		"blobDomain": s.blobDomain,
		"container":  loc.container,
		"prefix":     loc.prefix,
		"auth":       auth,
	}).Debug("constructed Azure blob store")

	return s, nil
}

// requireEnv returns the values of environment variables |names|, or an
// error naming those which are unset.
func requireEnv(scheme string, names ...string) ([]string, error) {
	var values, missing = make([]string, len(names)), []string(nil)
	for i, name := range names {
		if values[i] = os.Getenv(name); values[i] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) != 0 {
		return nil, fmt.Errorf("%s must be set for %s URLs", strings.Join(missing, " and "), scheme)
	}
	return values, nil
}

func (a *storeBase) Provider() string { return "azure" }

func (a *storeBase) Upload(ctx context.Context, req stores.UploadRequest) (stores.UploadResult, error) {
	var id, err = common.ContentID(req.Body, req.Size)
	if err != nil {
		return stores.UploadResult{}, err
	}
	blobURL, err := a.buildBlobURL(id)
	if err != nil {
		return stores.UploadResult{}, err
	}

	if _, err = blobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{}); err == nil {
		log.WithFields(log.Fields{"container": a.container, "blob": a.prefix + id}).Debug("blob exists; skipping upload")
		return stores.UploadResult{ID: id}, nil
	} else if inner, ok := err.(azblob.StorageError); !ok || inner.ServiceCode() != azblob.ServiceCodeBlobNotFound {
		return stores.UploadResult{}, err
	}

	body, err := req.Body()
	if err != nil {
		return stores.UploadResult{}, fmt.Errorf("opening content: %w", err)
	}
	defer body.Close()

	_, err = azblob.UploadStreamToBlockBlob(ctx, body, *blobURL, uploadOptions(a.args, req.Tags))
	if err != nil {
		return stores.UploadResult{}, err
	}
	return stores.UploadResult{ID: id}, nil
}

func (a *storeBase) IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if storageErr, ok := err.(azblob.StorageError); ok {
		switch storageErr.ServiceCode() {
		case azblob.ServiceCodeContainerNotFound,
			azblob.ServiceCodeContainerDisabled,
			azblob.ServiceCodeAccountIsDisabled:
			return true
		}

		if storageErr.Response() != nil {
			switch storageErr.Response().StatusCode {
			case http.StatusForbidden:
				return true
			}
		}
	}

	return false
}

func (a *storeBase) buildBlobURL(name string) (*azblob.BlockBlobURL, error) {
	var u, err = url.Parse(fmt.Sprint(a.containerURL(), "/", a.prefix, name))
	if err != nil {
		return nil, err
	}
	var blobURL = azblob.NewBlockBlobURL(*u, a.pipeline)
	return &blobURL, nil
}

func (a *storeBase) containerURL() string {
	return fmt.Sprintf("%s/%s", azureStorageURL(a.account, a.blobDomain), a.container)
}

func azureStorageURL(storageAccount string, blobDomain string) string {
	return fmt.Sprintf("https://%s.%s", storageAccount, blobDomain)
}

func blobDomain() string {
	if d := os.Getenv("AZURE_BLOB_DOMAIN"); d != "" {
		return d
	}
	return "blob.core.windows.net"
}

func uploadOptions(args StoreQueryArgs, tags arweave.Tags) azblob.UploadStreamToBlockBlobOptions {
	var contentType, metadata = common.SplitTags(tags)

	var opts = azblob.UploadStreamToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: contentType},
		Metadata:        azblob.Metadata{},
		BlobAccessTier:  azblob.DefaultAccessTier,
	}
	// Blob metadata names must be valid C# identifiers.
	for name, value := range metadata {
		opts.Metadata[metadataName(name)] = value
	}
	if args.AccessTier != "" {
		opts.BlobAccessTier = azblob.AccessTierType(args.AccessTier)
	}
	return opts
}

func metadataName(name string) string {
	var out = []byte(name)
	for i, c := range out {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i != 0 && c >= '0' && c <= '9') {
			out[i] = '_'
		}
	}
	return string(out)
}
