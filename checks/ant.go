package checks

import (
	"context"
	"fmt"

	"go.permalaunch.dev/core/ant"
)

// RecordReader reads the name record of an undername.
type RecordReader interface {
	GetRecord(ctx context.Context, undername string) (*ant.Record, error)
}

// ANTCheck verifies that the configured ANT process answers for its record.
type ANTCheck struct {
	// Process is the ANT process. If empty, the check is skipped.
	Process   string
	Undername string
	// Records reads from Process. Nil if Process is malformed.
	Records RecordReader
	// Err encountered constructing Records.
	Err error
}

func (ANTCheck) Name() string   { return "ant" }
func (ANTCheck) Critical() bool { return false }

func (c ANTCheck) Run(ctx context.Context) Result {
	var res Result

	if c.Process == "" {
		return res.skip("no ANT process configured; the name record won't be updated")
	} else if c.Err != nil {
		return res.fail(c.Err.Error())
	} else if c.Records == nil {
		return res.fail("ANT process " + c.Process + " has no record reader")
	}

	var undername = c.Undername
	if undername == "" {
		undername = ant.ApexUndername
	}
	res.Details = append(res.Details, "URL: "+ant.URL(c.Process, undername))

	var rec, err = c.Records.GetRecord(ctx, undername)
	if err != nil {
		return res.fail(fmt.Sprintf("reading record %q: %s", undername, err))
	}
	res.Details = append(res.Details,
		fmt.Sprintf("current record: %s (ttl %ds)", rec.TransactionID, rec.TTLSeconds))

	return res.pass("ANT process reachable")
}
