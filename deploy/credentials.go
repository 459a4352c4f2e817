package deploy

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.permalaunch.dev/core/arweave"
)

// CredentialProvider supplies the signing credential of a deployment.
// It's invoked when the credential is required, rather than read from
// process-wide state.
type CredentialProvider func() (arweave.Signer, error)

// ErrNoCredentials is returned when no signing credential is configured.
var ErrNoCredentials = errors.New("no signing credential is configured (set DEPLOY_KEY or --wallet.file)")

// StaticCredentials provides |signer|.
func StaticCredentials(signer arweave.Signer) CredentialProvider {
	return func() (arweave.Signer, error) { return signer, nil }
}

// DeployKeyCredentials provides the wallet of the base64-encoded JWK |encoded|.
func DeployKeyCredentials(encoded string) CredentialProvider {
	return func() (arweave.Signer, error) {
		if encoded == "" {
			return nil, ErrNoCredentials
		}
		return arweave.DecodeDeployKey(encoded)
	}
}

// WalletFileCredentials provides the wallet of the JWK file at |path|.
func WalletFileCredentials(fs afero.Fs, path string) CredentialProvider {
	return func() (arweave.Signer, error) {
		if path == "" {
			return nil, ErrNoCredentials
		}
		return arweave.LoadWalletFile(fs, path)
	}
}

// FirstCredentials provides the credential of the first of |providers|
// which is configured.
func FirstCredentials(providers ...CredentialProvider) CredentialProvider {
	return func() (arweave.Signer, error) {
		for _, p := range providers {
			var signer, err = p()
			if errors.Is(err, ErrNoCredentials) {
				continue
			}
			return signer, err
		}
		return nil, ErrNoCredentials
	}
}
