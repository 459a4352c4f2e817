package checks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/deploy"
)

// WalletFileName is the conventional name of a project's wallet file.
const WalletFileName = "wallet.json"

// WalletCheck verifies that a signing wallet is configured and decodes,
// and that a wallet file in the project can't be committed to git.
type WalletCheck struct {
	FS afero.Fs
	// Dir is the project directory.
	Dir string
	// Credentials of the deployment.
	Credentials deploy.CredentialProvider
}

func (WalletCheck) Name() string   { return "wallet" }
func (WalletCheck) Critical() bool { return true }

func (c WalletCheck) Run(context.Context) Result {
	var res Result

	var walletPath = filepath.Join(c.Dir, WalletFileName)
	if info, err := c.FS.Stat(walletPath); err == nil {
		if ignored, err := gitIgnores(c.FS, c.Dir, WalletFileName); err != nil {
			return res.fail(fmt.Sprintf("reading .gitignore: %s", err))
		} else if !ignored {
			return res.fail(WalletFileName + " is present but not listed in .gitignore")
		}
		res.Details = append(res.Details, WalletFileName+" is ignored by git")

		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s is accessible to other users (mode %#o); consider mode 0600", WalletFileName, perm))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return res.fail(fmt.Sprintf("checking %s: %s", WalletFileName, err))
	}

	var signer, err = c.Credentials()
	if errors.Is(err, deploy.ErrNoCredentials) {
		return res.fail("no wallet configured: set DEPLOY_KEY to the base64 encoding of your wallet JSON")
	} else if err != nil {
		return res.fail(fmt.Sprintf("wallet is invalid: %s", err))
	}
	res.Details = append(res.Details, "wallet address: "+arweave.OwnerAddress(signer.Owner()))

	return res.pass("wallet configured")
}

// gitIgnores returns true if the .gitignore of |dir| ignores |name|, a path
// relative to |dir|.
func gitIgnores(fs afero.Fs, dir, name string) (bool, error) {
	var b, err = afero.ReadFile(fs, filepath.Join(dir, ".gitignore"))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return ignore.CompileIgnoreLines(strings.Split(string(b), "\n")...).MatchesPath(name), nil
}
