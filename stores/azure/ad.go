package azure

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-storage-blob-go/azblob"
	log "github.com/sirupsen/logrus"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
)

// storageScope is the OAuth scope of Azure Storage tokens.
const storageScope = "https://storage.azure.com/.default"

// NewAD returns a Store of the azure-ad://tenant/account/container/prefix/
// URL |ep|, authenticated as the Azure AD application named by
// AZURE_CLIENT_ID and AZURE_CLIENT_SECRET.
func NewAD(ep *url.URL, _ arweave.Signer) (stores.Store, error) {
	var tenant, loc, err = parseADLocation(ep)
	if err != nil {
		return nil, err
	}
	env, err := requireEnv("azure-ad://", "AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	secret, err := azidentity.NewClientSecretCredential(tenant, env[0], env[1],
		&azidentity.ClientSecretCredentialOptions{DisableInstanceDiscovery: true})
	if err != nil {
		return nil, err
	}
	var credential = azblob.NewTokenCredential("", tokenRefresher(secret, tenant))

	return newStore(ep, loc, credential, "azure ad")
}

func parseADLocation(ep *url.URL) (tenant string, loc location, err error) {
	var parts = strings.SplitN(strings.TrimPrefix(ep.Path, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", location{}, fmt.Errorf("azure-ad:// URL %q must take the form azure-ad://tenant/account/container/prefix/", ep.String())
	}
	loc = location{account: parts[0], container: parts[1]}
	if len(parts) == 3 {
		loc.prefix = parts[2]
	}
	return ep.Host, loc, nil
}

// tokenRefresher returns an azblob.TokenRefresher which sets storage tokens
// obtained from |source|. It returns the delay until the next refresh, which
// is a minute ahead of token expiry or a minute after a failure.
func tokenRefresher(source azcore.TokenCredential, tenant string) azblob.TokenRefresher {
	return func(credential azblob.TokenCredential) time.Duration {
		var token, err = source.GetToken(context.Background(), policy.TokenRequestOptions{
			TenantID: tenant,
			Scopes:   []string{storageScope},
		})
		if err != nil {
			log.WithFields(log.Fields{"err": err, "tenant": tenant}).
				Error("failed to refresh Azure credential (will retry)")
			return time.Minute
		}
		credential.SetToken(token.Token)

		if d := time.Until(token.ExpiresOn) - time.Minute; d > 0 {
			return d
		}
		return time.Minute
	}
}
