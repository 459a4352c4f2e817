package checks

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"
	"go.permalaunch.dev/core/arweave"
)

// GitHashTag is the tag carrying the git revision of a deployment.
const GitHashTag = "GIT-HASH"

// WorkflowFiles are the accepted locations of the deployment workflow.
var WorkflowFiles = []string{
	".github/workflows/deploy.yml",
	".github/workflows/deploy.yaml",
}

// GitTags returns tags describing the git revision being deployed, which is
// read from GITHUB_SHA.
func GitTags(getenv func(string) string) arweave.Tags {
	if sha := getenv("GITHUB_SHA"); sha != "" {
		return arweave.Tags{{Name: GitHashTag, Value: sha}}
	}
	return nil
}

// GitCheck reports on the git context of a deployment. It never fails.
type GitCheck struct {
	FS afero.Fs
	// Dir is the project directory.
	Dir    string
	Getenv func(string) string
}

func (GitCheck) Name() string   { return "git" }
func (GitCheck) Critical() bool { return false }

func (c GitCheck) Run(context.Context) Result {
	var res Result

	if tags := GitTags(c.Getenv); len(tags) != 0 {
		res.Details = append(res.Details, "revision: "+tags[0].Value)
	} else {
		res.Warnings = append(res.Warnings, "GITHUB_SHA is not set; the deployment won't be tagged with its revision")
	}

	var found string
	for _, name := range WorkflowFiles {
		if ok, _ := afero.Exists(c.FS, filepath.Join(c.Dir, filepath.FromSlash(name))); ok {
			found = name
			break
		}
	}
	if found != "" {
		res.Details = append(res.Details, "workflow: "+found)
	} else {
		res.Warnings = append(res.Warnings, "no deployment workflow found at "+WorkflowFiles[0])
	}
	return res.pass("git context inspected")
}
