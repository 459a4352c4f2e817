// Package plcmd implements the commands of the permalaunch tool.
package plcmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.permalaunch.dev/core/ant"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/checks"
	"go.permalaunch.dev/core/deploy"
	mbp "go.permalaunch.dev/core/mainboilerplate"
	"go.permalaunch.dev/core/stores"
)

const iniFilename = "permalaunch.ini"

// ProjectConfig locates the project and its build.
type ProjectConfig struct {
	Dir         string `long:"dir" env:"DIR" default:"." description:"Project directory"`
	BuildFolder string `long:"build-folder" env:"BUILD_FOLDER" description:"Build folder, relative to the project directory. If empty, the first of ./dist, ./build or ./.next is used"`
}

// StoreConfig configures the content store and uploads made to it.
type StoreConfig struct {
	URL             string        `long:"url" env:"URL" default:"turbo://upload.ardrive.io/" description:"Content store URL (turbo://, file://, s3://, gs://, azure://, azure-ad://)"`
	Gateway         string        `long:"gateway" env:"GATEWAY" default:"https://arweave.net" description:"Gateway from which deployed manifests are served"`
	FileTimeout     time.Duration `long:"file-timeout" env:"FILE_TIMEOUT" default:"10s" description:"Timeout of each file upload"`
	ManifestTimeout time.Duration `long:"manifest-timeout" env:"MANIFEST_TIMEOUT" default:"10s" description:"Timeout of the manifest upload"`
	Concurrency     int           `long:"concurrency" env:"CONCURRENCY" default:"8" description:"Maximum number of concurrent file uploads"`
	AppName         string        `long:"app-name" env:"APP_NAME" default:"Permalaunch" description:"App-Name tag attached to uploads and name record updates"`
}

// WalletConfig supplies the signing wallet. Its environment variables are
// not namespaced, so that CI secrets may be bound directly.
type WalletConfig struct {
	DeployKey string `long:"deploy-key" env:"DEPLOY_KEY" description:"Base64 encoding of the wallet JWK" no-ini:"true"`
	File      string `long:"file" env:"WALLET_FILE" description:"Path to a wallet JWK file. Used if no deploy key is set"`
}

// ANTConfig configures the name record updated by a deployment.
type ANTConfig struct {
	Process   string        `long:"process" env:"PROCESS" description:"ANT process whose record is updated. If empty, no record is updated"`
	Undername string        `long:"undername" env:"UNDERNAME" default:"@" description:"Undername of the record. '@' is the apex name"`
	TTL       int           `long:"ttl" env:"TTL" default:"3600" description:"Time-to-live of the record, in seconds"`
	MU        string        `long:"mu" env:"MU" default:"https://mu.ao-testnet.xyz" description:"AO messenger unit URL"`
	CU        string        `long:"cu" env:"CU" default:"https://cu.ao-testnet.xyz" description:"AO compute unit URL"`
	Timeout   time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"Timeout of each request to an AO unit"`
}

type config struct {
	Project ProjectConfig     `group:"Project" namespace:"project" env-namespace:"PROJECT"`
	Store   StoreConfig       `group:"Store" namespace:"store" env-namespace:"STORE"`
	Wallet  WalletConfig      `group:"Wallet" namespace:"wallet"`
	ANT     ANTConfig         `group:"ANT" namespace:"ant" env-namespace:"ANT"`
	Log     mbp.LogConfig     `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Metrics mbp.MetricsConfig `group:"Metrics" namespace:"metrics" env-namespace:"METRICS"`
}

// Config is the top-level configuration of permalaunch.
var Config = new(config)

var commands = mbp.NewCommandRegistry()

// Execute parses configuration and runs the selected command.
func Execute() {
	var parser = flags.NewParser(Config, flags.Default)

	mbp.AddPrintConfigCmd(parser, iniFilename)
	parser.LongDescription = `permalaunch deploys static site builds to Arweave.

	Each file of the build is uploaded, then a path manifest addressing the
	site as a whole, and finally an ANT name record is optionally pointed at
	the manifest.

	Optionally configure permalaunch with a '` + iniFilename + `' file in the current
	working directory, or with '~/.config/permalaunch/` + iniFilename + `'. Use the
	'print-config' sub-command to inspect the tool's current configuration.
	`
	mbp.Must(commands.AddCommands("", parser.Command, true), "could not add subcommand")
	mbp.MustParseConfig(parser, iniFilename)
}

func startup() {
	mbp.InitLog(Config.Log)
}

// signalContext returns a Context which is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func pushMetrics() {
	_ = mbp.PushMetrics(Config.Metrics, prometheus.DefaultGatherer)
}

func (cfg *config) credentials(fs afero.Fs) deploy.CredentialProvider {
	return deploy.FirstCredentials(
		deploy.DeployKeyCredentials(cfg.Wallet.DeployKey),
		deploy.WalletFileCredentials(fs, cfg.Wallet.File),
	)
}

// antClient returns a Client of the configured ANT process, or nil if no
// process is configured. |signer| may be nil if records are only read.
func (cfg *config) antClient(signer arweave.Signer) (*ant.Client, error) {
	if cfg.ANT.Process == "" {
		return nil, nil
	}
	return ant.NewClient(ant.Config{
		MUURL:      cfg.ANT.MU,
		CUURL:      cfg.ANT.CU,
		HTTPClient: &http.Client{Timeout: cfg.ANT.Timeout},
	}, cfg.ANT.Process, signer)
}

// buildChecklist returns the prelaunch Checklist of |cfg|.
func buildChecklist(cfg *config, fs afero.Fs, getenv func(string) string) checks.Checklist {
	var antCheck = checks.ANTCheck{Process: cfg.ANT.Process, Undername: cfg.ANT.Undername}
	if client, err := cfg.antClient(nil); err != nil {
		antCheck.Err = err
	} else if client != nil {
		antCheck.Records = client
	}

	var openStore = func(rawURL string) (stores.Store, error) {
		var signer, err = cfg.credentials(fs)()
		if err != nil {
			signer = nil
		}
		store, err := stores.Open(rawURL, signer)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	return checks.Checklist{
		checks.WalletCheck{FS: fs, Dir: cfg.Project.Dir, Credentials: cfg.credentials(fs)},
		checks.BuildCheck{FS: fs, Dir: cfg.Project.Dir, Folder: cfg.Project.BuildFolder},
		checks.StoreCheck{URL: cfg.Store.URL, Open: openStore},
		checks.GitCheck{FS: fs, Dir: cfg.Project.Dir, Getenv: getenv},
		antCheck,
	}
}

// selectChecks filters |list| to checks named by |only|. All checks are
// returned if |only| is empty.
func selectChecks(list checks.Checklist, only []string) (checks.Checklist, error) {
	if len(only) == 0 {
		return list, nil
	}
	var out checks.Checklist
	for _, name := range only {
		var found bool
		for _, check := range list {
			if check.Name() == name {
				out, found = append(out, check), true
			}
		}
		if !found {
			return nil, errors.Errorf("unknown check %q", name)
		}
	}
	return out, nil
}

// buildDeployer returns the Deployer of |cfg|, and the resolved build folder.
func buildDeployer(cfg *config, fs afero.Fs, getenv func(string) string) (*deploy.Deployer, string, error) {
	var root, err = checks.ResolveBuildFolder(fs, cfg.Project.Dir, cfg.Project.BuildFolder)
	if err != nil {
		return nil, "", err
	}

	signer, err := cfg.credentials(fs)()
	if err != nil && !errors.Is(err, deploy.ErrNoCredentials) {
		return nil, "", errors.WithMessage(err, "loading wallet")
	} else if err != nil {
		signer = nil
	}

	store, err := stores.Open(cfg.Store.URL, signer)
	if err != nil {
		return nil, "", errors.WithMessage(err, "opening content store")
	}

	var d = &deploy.Deployer{
		Tree: &deploy.TreeUploader{
			FS:          fs,
			Store:       store,
			Timeout:     cfg.Store.FileTimeout,
			Concurrency: cfg.Store.Concurrency,
			AppName:     cfg.Store.AppName,
		},
		Manifests: &deploy.ManifestPublisher{
			FS:      fs,
			Store:   store,
			Timeout: cfg.Store.ManifestTimeout,
			AppName: cfg.Store.AppName,
		},
	}

	if cfg.ANT.Process != "" {
		if signer == nil {
			return nil, "", errors.WithMessage(deploy.ErrNoCredentials, "updating the ANT record")
		}
		client, err := cfg.antClient(signer)
		if err != nil {
			return nil, "", err
		}
		log.WithFields(log.Fields{
			"process":   client.ProcessID(),
			"undername": cfg.ANT.Undername,
		}).Debug("name record will be updated")
		d.Names = &ant.Updater{
			Records:    client,
			Undername:  cfg.ANT.Undername,
			TTLSeconds: cfg.ANT.TTL,
			AppName:    cfg.Store.AppName,
			Tags:       checks.GitTags(getenv),
		}
	}
	return d, root, nil
}
