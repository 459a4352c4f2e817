package plcmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"go.permalaunch.dev/core/ant"
	"go.permalaunch.dev/core/checks"
	"go.permalaunch.dev/core/deploy"
	"gopkg.in/yaml.v2"
)

// summary is the presented outcome of a deployment.
type summary struct {
	RunID       string                `json:"runId" yaml:"runId"`
	ManifestID  string                `json:"manifestId" yaml:"manifestId"`
	ManifestURL string                `json:"manifestUrl" yaml:"manifestUrl"`
	NameURL     string                `json:"nameUrl,omitempty" yaml:"nameUrl,omitempty"`
	NameUpdated bool                  `json:"nameUpdated" yaml:"nameUpdated"`
	Files       []deploy.UploadRecord `json:"files" yaml:"files"`
	Skipped     []string              `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Bytes       int64                 `json:"bytes" yaml:"bytes"`
	Elapsed     string                `json:"elapsed" yaml:"elapsed"`
}

func summarize(res *deploy.Result, cfg *config) summary {
	var out = summary{
		RunID:       res.RunID,
		ManifestID:  res.ManifestID,
		ManifestURL: gatewayURL(cfg.Store.Gateway, res.ManifestID),
		NameUpdated: res.NameUpdated,
		Files:       res.Uploads.Records,
		Bytes:       res.Uploads.Bytes(),
		Elapsed:     res.Elapsed.Round(time.Millisecond).String(),
	}
	if cfg.ANT.Process != "" {
		out.NameURL = ant.URL(cfg.ANT.Process, cfg.ANT.Undername)
	}
	for _, s := range res.Uploads.Skipped {
		out.Skipped = append(out.Skipped, s.Path)
	}
	return out
}

func gatewayURL(gateway, id string) string {
	return strings.TrimSuffix(gateway, "/") + "/" + id
}

func writeResult(w io.Writer, format string, s summary) error {
	switch format {
	case "json":
		return writeJSON(w, s)
	case "yaml":
		return writeYAML(w, s)
	}

	var table = tablewriter.NewWriter(w)
	table.Header("Path", "ID", "Size", "Content-Type")
	for _, rec := range s.Files {
		if err := table.Append([]string{rec.Path, rec.ID, humanize.Bytes(uint64(rec.Size)), rec.ContentType}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, path := range s.Skipped {
		fmt.Fprintf(w, "Skipped:   %s\n", path)
	}
	fmt.Fprintf(w, "\nUploaded %d files (%s) in %s.\n", len(s.Files), humanize.Bytes(uint64(s.Bytes)), s.Elapsed)
	fmt.Fprintf(w, "Manifest:  %s\n", s.ManifestID)
	fmt.Fprintf(w, "URL:       %s\n", s.ManifestURL)

	if s.NameURL != "" && s.NameUpdated {
		fmt.Fprintf(w, "Name URL:  %s\n", s.NameURL)
	} else if s.NameURL != "" {
		fmt.Fprintf(w, "Name URL:  %s (not updated)\n", s.NameURL)
	}
	return nil
}

func writeReport(w io.Writer, format string, report checks.Report) error {
	switch format {
	case "json":
		return writeJSON(w, report)
	case "yaml":
		return writeYAML(w, report)
	}

	var table = tablewriter.NewWriter(w)
	table.Header("Check", "Status", "Message", "Notes")
	for _, res := range report.Results {
		var notes = append([]string(nil), res.Details...)
		for _, warning := range res.Warnings {
			notes = append(notes, "warning: "+warning)
		}
		if err := table.Append([]string{res.Name, status(res), res.Message, strings.Join(notes, "\n")}); err != nil {
			return err
		}
	}
	return table.Render()
}

func status(res checks.Result) string {
	switch {
	case res.Skipped:
		return "SKIP"
	case !res.Passed && res.Critical:
		return "FAIL"
	case !res.Passed:
		return "WARN"
	case len(res.Warnings) != 0:
		return "PASS*"
	default:
		return "PASS"
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	var enc = json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	var b, err = yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
