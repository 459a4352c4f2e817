package azure

import (
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
)

// NewAccount returns a Store of the azure://container/prefix/ URL |ep|,
// authenticated by the shared key of the storage account named by
// AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY.
func NewAccount(ep *url.URL, _ arweave.Signer) (stores.Store, error) {
	var env, err = requireEnv("azure://", "AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY")
	if err != nil {
		return nil, err
	}
	var loc = location{
		account:   env[0],
		container: ep.Host,
		prefix:    strings.TrimPrefix(ep.Path, "/"),
	}

	credential, err := azblob.NewSharedKeyCredential(env[0], env[1])
	if err != nil {
		return nil, err
	}
	return newStore(ep, loc, credential, "shared key")
}
