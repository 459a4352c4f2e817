package ant

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.permalaunch.dev/core/arweave"
)

// ApexUndername is the undername of the ArNS name itself.
const ApexUndername = "@"

// DefaultTTLSeconds is the time-to-live of records set by an Updater.
const DefaultTTLSeconds = 3600

// Record maps an undername to a transaction.
type Record struct {
	Undername     string `json:"-" yaml:"undername"`
	TransactionID string `json:"transactionId" yaml:"transactionId"`
	TTLSeconds    int    `json:"ttlSeconds" yaml:"ttlSeconds"`
}

// SetRecord points the record of |rec.Undername| at |rec.TransactionID|.
// |tags| are attached to the message ahead of the Set-Record action.
func (c *Client) SetRecord(ctx context.Context, rec Record, tags arweave.Tags) error {
	if rec.Undername == "" {
		rec.Undername = ApexUndername
	}
	if _, err := arweave.DecodeID(rec.TransactionID); err != nil {
		return errors.WithMessage(err, "record transaction")
	}

	tags = append(append(arweave.Tags{}, tags...),
		arweave.Tag{Name: "Action", Value: "Set-Record"},
		arweave.Tag{Name: "Sub-Domain", Value: rec.Undername},
		arweave.Tag{Name: "Transaction-Id", Value: rec.TransactionID},
		arweave.Tag{Name: "TTL-Seconds", Value: strconv.Itoa(rec.TTLSeconds)},
	)

	var id, result, err = c.Send(ctx, tags, []byte("1234"))
	if err != nil {
		return errors.WithMessage(err, "Set-Record")
	} else if err = result.Err(); err != nil {
		return errors.WithMessagef(err, "Set-Record message %s", id)
	}

	log.WithFields(log.Fields{
		"process":     c.processID,
		"undername":   rec.Undername,
		"transaction": rec.TransactionID,
		"message":     id,
	}).Info("set ANT record")

	return nil
}

// GetRecord returns the current record of |undername|.
func (c *Client) GetRecord(ctx context.Context, undername string) (*Record, error) {
	if undername == "" {
		undername = ApexUndername
	}
	var result, err = c.DryRun(ctx, arweave.Tags{
		{Name: "Action", Value: "Record"},
		{Name: "Sub-Domain", Value: undername},
	})
	if err != nil {
		return nil, errors.WithMessage(err, "reading ANT record")
	} else if err = result.Err(); err != nil {
		return nil, errors.WithMessagef(err, "reading ANT record %q", undername)
	} else if len(result.Messages) == 0 {
		return nil, errors.Errorf("reading ANT record %q: process returned no messages", undername)
	}

	var rec = Record{Undername: undername}
	if err = json.Unmarshal([]byte(result.Messages[0].Data), &rec); err != nil {
		return nil, errors.WithMessagef(err, "decoding ANT record %q", undername)
	}
	return &rec, nil
}
