package ant

import (
	"context"
	"strings"

	"go.permalaunch.dev/core/arweave"
)

// RecordSetter is the subset of Client used by an Updater.
type RecordSetter interface {
	SetRecord(ctx context.Context, rec Record, tags arweave.Tags) error
}

// Updater points an undername of an ANT at deployed manifests.
type Updater struct {
	Records RecordSetter
	// Undername to update. If empty, ApexUndername is used.
	Undername string
	// TTLSeconds of updated records. If zero, DefaultTTLSeconds is used.
	TTLSeconds int
	// AppName is attached to update messages as an App-Name tag, if set.
	AppName string
	// Tags are attached to update messages, ahead of App-Name.
	Tags arweave.Tags
}

// UpdateRecord points the Updater's undername at |manifestID|.
func (u *Updater) UpdateRecord(ctx context.Context, manifestID string) error {
	var rec = Record{
		Undername:     u.Undername,
		TransactionID: manifestID,
		TTLSeconds:    u.TTLSeconds,
	}
	if rec.Undername == "" {
		rec.Undername = ApexUndername
	}
	if rec.TTLSeconds == 0 {
		rec.TTLSeconds = DefaultTTLSeconds
	}

	var tags = append(arweave.Tags{}, u.Tags...)
	if u.AppName != "" {
		tags = append(tags, arweave.Tag{Name: "App-Name", Value: u.AppName})
	}
	return u.Records.SetRecord(ctx, rec, tags)
}

// URL returns the gateway URL at which |undername| of the ArNS name of
// |process| resolves. A |process| containing a dot is taken as a domain.
func URL(process, undername string) string {
	var domain = process
	if !strings.Contains(process, ".") {
		domain = process + ".ar-io.dev"
	}
	if undername == "" || undername == ApexUndername {
		return "https://" + domain
	}
	return "https://" + undername + "." + domain
}
