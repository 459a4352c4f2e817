// Package deploy uploads a static site build to a content store, and
// publishes a path manifest which addresses the site as a whole.
//
// A deployment proceeds in stages. A TreeUploader uploads each file of the
// build, skipping files which fail. A ManifestPublisher then uploads the
// manifest of uploaded paths, and finally an optional NameRecordUpdater
// points a mutable name at the manifest.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrManifestUpload is returned when a deployment's manifest can't be uploaded.
var ErrManifestUpload = errors.New("manifest upload failed")

// PartialDeployError is returned when a deployment's content and manifest
// are live, but its name record could not be updated to reference them.
type PartialDeployError struct {
	ManifestID string
	Err        error
}

func (e *PartialDeployError) Error() string {
	return fmt.Sprintf("content is live at manifest %s, but the name record was not updated: %s", e.ManifestID, e.Err)
}

func (e *PartialDeployError) Unwrap() error { return e.Err }

// NameRecordUpdater points a mutable name record at a manifest.
type NameRecordUpdater interface {
	UpdateRecord(ctx context.Context, manifestID string) error
}

// Deployer orchestrates the stages of a deployment.
type Deployer struct {
	Tree      *TreeUploader
	Manifests *ManifestPublisher
	// Names is updated with the published manifest. If nil, no name
	// record is updated.
	Names NameRecordUpdater
}

// Result is the outcome of a deployment.
type Result struct {
	RunID      string
	Uploads    *TreeResult
	Manifest   *Manifest
	ManifestID string
	// NameUpdated is true if a name record was updated to ManifestID.
	NameUpdated bool
	Elapsed     time.Duration
}

// Deploy the build rooted at |root|. If the manifest can't be uploaded,
// Deploy returns ErrManifestUpload. If the name record can't be updated,
// Deploy returns the Result together with a *PartialDeployError.
func (d *Deployer) Deploy(ctx context.Context, root string) (*Result, error) {
	var res = &Result{RunID: uuid.NewString()}
	var started = time.Now()
	var logger = log.WithField("run", res.RunID)

	logger.WithField("root", root).Info("starting deployment")

	var err error
	if res.Uploads, err = d.Tree.Upload(ctx, root); err != nil {
		logger.WithFields(log.Fields{"stage": "upload", "err": err}).Error("deployment failed")
		return nil, errors.WithMessage(err, "uploading files")
	}
	logger.WithFields(log.Fields{
		"uploaded": len(res.Uploads.Records),
		"skipped":  len(res.Uploads.Skipped),
		"bytes":    humanize.Bytes(uint64(res.Uploads.Bytes())),
	}).Info("uploaded files")

	res.Manifest = BuildManifest(res.Uploads.Records)
	if res.ManifestID = d.Manifests.PublishManifest(ctx, res.Manifest); res.ManifestID == "" {
		logger.WithField("stage", "manifest").Error("deployment failed")
		return nil, ErrManifestUpload
	}

	if d.Names != nil {
		if err = d.Names.UpdateRecord(ctx, res.ManifestID); err != nil {
			logger.WithFields(log.Fields{"stage": "name-record", "err": err}).Error("failed to update name record")
			res.Elapsed = time.Since(started)
			return res, &PartialDeployError{ManifestID: res.ManifestID, Err: err}
		}
		res.NameUpdated = true
	}
	res.Elapsed = time.Since(started)

	logger.WithFields(log.Fields{
		"manifest": res.ManifestID,
		"took":     res.Elapsed.Round(time.Millisecond),
	}).Info("deployment complete")

	return res, nil
}
