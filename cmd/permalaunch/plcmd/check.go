package plcmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type cmdCheck struct {
	Only   []string `long:"only" choice:"wallet" choice:"build" choice:"store" choice:"git" choice:"ant" description:"Run only the named check. May be repeated"`
	Format string   `long:"format" short:"o" choice:"table" choice:"yaml" choice:"json" default:"table" description:"Output format"`
}

func init() {
	commands.AddCommand("", "check", "Run prelaunch checks", `
Run prelaunch checks of the project, without deploying.

Checks of the wallet and build are critical: the command fails if either
does not pass. Other checks are informational.

Run only the wallet and build checks:
>    permalaunch check --only wallet --only build
`, &cmdCheck{})
}

func (cmd *cmdCheck) Execute([]string) error {
	startup()

	var list, err = selectChecks(buildChecklist(Config, afero.NewOsFs(), os.Getenv), cmd.Only)
	if err != nil {
		return err
	}
	var report = list.Run(context.Background())

	if err = writeReport(os.Stdout, cmd.Format, report); err != nil {
		return err
	} else if !report.CriticalPassed() {
		return errors.New("critical prelaunch checks failed")
	}
	return nil
}
