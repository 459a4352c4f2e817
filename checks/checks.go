// Package checks implements the prelaunch checklist run before a deployment.
// Critical checks must pass for a deployment to proceed; optional checks
// only inform.
package checks

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Result is the outcome of a Check.
type Result struct {
	Name     string `json:"name" yaml:"name"`
	Critical bool   `json:"critical" yaml:"critical"`
	Passed   bool   `json:"passed" yaml:"passed"`
	Skipped  bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// Message summarizes the outcome.
	Message string `json:"message" yaml:"message"`
	// Details are facts established by the check.
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
	// Warnings are problems which don't fail the check.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (r *Result) pass(msg string) Result {
	r.Passed, r.Message = true, msg
	return *r
}

func (r *Result) fail(msg string) Result {
	r.Passed, r.Message = false, msg
	return *r
}

func (r *Result) skip(msg string) Result {
	r.Passed, r.Skipped, r.Message = true, true, msg
	return *r
}

// Check is a single item of the prelaunch checklist.
type Check interface {
	Name() string
	Critical() bool
	Run(ctx context.Context) Result
}

// Checklist is an ordered set of Checks.
type Checklist []Check

// Report holds the Results of a Checklist, in order.
type Report struct {
	Results []Result `json:"results" yaml:"results"`
}

// Run each Check of the Checklist. All checks are run, even if an earlier
// critical check fails, so that the Report is complete.
func (c Checklist) Run(ctx context.Context) Report {
	var report Report
	for _, check := range c {
		var res = check.Run(ctx)
		res.Name, res.Critical = check.Name(), check.Critical()

		log.WithFields(log.Fields{
			"check":   res.Name,
			"passed":  res.Passed,
			"skipped": res.Skipped,
			"message": res.Message,
		}).Debug("ran prelaunch check")

		report.Results = append(report.Results, res)
	}
	return report
}

// CriticalPassed returns true if every critical check passed.
func (r Report) CriticalPassed() bool {
	for _, res := range r.Results {
		if res.Critical && !res.Passed {
			return false
		}
	}
	return true
}

// Get returns the Result of the named check.
func (r Report) Get(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}
