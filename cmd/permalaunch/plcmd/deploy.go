package plcmd

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.permalaunch.dev/core/checks"
	"go.permalaunch.dev/core/deploy"
)

type cmdDeploy struct {
	Quick  bool   `long:"quick" description:"Skip prelaunch checks"`
	Format string `long:"format" short:"o" choice:"table" choice:"yaml" choice:"json" default:"table" description:"Output format of the deployment summary"`
}

func init() {
	commands.AddCommand("", "deploy", "Deploy a site build", `
Deploy the build folder of the project.

Unless --quick is given, prelaunch checks are run first and the deployment
is aborted if a critical check fails. Each file of the build is then uploaded
to the content store. Files which fail to upload are logged and skipped.
A path manifest of the uploaded files is then uploaded, and if an ANT
process is configured, its record is pointed at the manifest.

The deployment summary is written to stdout. The command fails if the
manifest could not be uploaded, or if the name record could not be updated.
In the latter case the content is nonetheless live at the manifest URL.

Deploy the ./dist folder, signing with a base64 wallet from the environment:
>    DEPLOY_KEY=$(base64 -w0 wallet.json) permalaunch deploy --project.build-folder=dist

Deploy and point the "docs" undername of an ANT at the result:
>    permalaunch deploy --ant.process=<process-id> --ant.undername=docs
`, &cmdDeploy{})
}

func (cmd *cmdDeploy) Execute([]string) error {
	startup()
	defer pushMetrics()

	var ctx, cancel = signalContext()
	defer cancel()

	var fs = afero.NewOsFs()

	if !cmd.Quick {
		var report = buildChecklist(Config, fs, os.Getenv).Run(ctx)
		if err := writeReport(os.Stderr, "table", report); err != nil {
			return err
		}
		if err := prelaunch(report); err != nil {
			return err
		}
	}

	var deployer, root, err = buildDeployer(Config, fs, os.Getenv)
	if err != nil {
		return err
	}
	res, err := deployer.Deploy(ctx, root)

	var partial *deploy.PartialDeployError
	if err != nil && !errors.As(err, &partial) {
		return err
	}
	if outErr := writeResult(os.Stdout, cmd.Format, summarize(res, Config)); outErr != nil {
		return outErr
	}
	if err != nil {
		log.WithField("url", gatewayURL(Config.Store.Gateway, res.ManifestID)).
			Warn("content is live, but the name record still references the previous deployment")
	}
	return err
}

// prelaunch decides whether a deployment may proceed given |report|.
// A failed ANT check doesn't block content uploads, but the record update
// at the end of the run is then unlikely to succeed.
func prelaunch(report checks.Report) error {
	if !report.CriticalPassed() {
		return errors.New("critical prelaunch checks failed (use --quick to skip checks)")
	}
	if res, ok := report.Get("ant"); ok && !res.Passed && !res.Skipped {
		log.WithField("reason", res.Message).
			Warn("ANT check failed; content will be uploaded, but the name record may not update")
	}
	return nil
}
