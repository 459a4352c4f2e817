package deploy

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
)

// Fixed fields of a path manifest.
const (
	ManifestType        = "arweave/paths"
	ManifestVersion     = "0.2.0"
	ManifestContentType = "application/x.arweave-manifest+json"
	IndexPath           = "index.html"
	FallbackName        = "404.html"
)

// DefaultManifestTimeout bounds the upload of a manifest.
const DefaultManifestTimeout = 10 * time.Second

// Manifest maps the paths of a deployment to their content identifiers.
type Manifest struct {
	Manifest string                  `json:"manifest"`
	Version  string                  `json:"version"`
	Index    ManifestIndex           `json:"index"`
	Fallback ManifestFallback        `json:"fallback"`
	Paths    map[string]ManifestPath `json:"paths"`
}

// ManifestIndex names the path served at the manifest root.
type ManifestIndex struct {
	Path string `json:"path"`
}

// ManifestFallback is served for paths not in the manifest.
// An empty ID encodes as {}.
type ManifestFallback struct {
	ID string `json:"id,omitempty"`
}

// ManifestPath is the content identifier of a single path.
type ManifestPath struct {
	ID string `json:"id"`
}

// BuildManifest builds the Manifest of |records|. The fallback is a 404.html
// if one was uploaded, preferring the shallowest and then the lexically
// least. Otherwise it's the root index.html, if uploaded.
func BuildManifest(records []UploadRecord) *Manifest {
	var m = &Manifest{
		Manifest: ManifestType,
		Version:  ManifestVersion,
		Index:    ManifestIndex{Path: IndexPath},
		Paths:    make(map[string]ManifestPath, len(records)),
	}

	var fallback string
	for _, rec := range records {
		m.Paths[rec.Path] = ManifestPath{ID: rec.ID}

		if path.Base(rec.Path) == FallbackName && preferFallback(rec.Path, fallback) {
			fallback = rec.Path
		}
	}

	if fallback != "" {
		m.Fallback.ID = m.Paths[fallback].ID
	} else if index, ok := m.Paths[IndexPath]; ok {
		m.Fallback.ID = index.ID
	}
	return m
}

func preferFallback(candidate, current string) bool {
	if current == "" {
		return true
	}
	var c, o = strings.Count(candidate, "/"), strings.Count(current, "/")
	if c != o {
		return c < o
	}
	return candidate < current
}

// Marshal returns the JSON encoding of the Manifest. Paths are ordered on
// key, so that equal Manifests always encode to identical bytes.
func (m *Manifest) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ManifestPublisher uploads Manifests to a Store.
type ManifestPublisher struct {
	// FS holding the scratch file of the serialized manifest.
	FS afero.Fs
	// Store to which manifests are uploaded.
	Store stores.Store
	// TempDir of the scratch file. If empty, the FS's temporary directory is used.
	TempDir string
	// Timeout of the manifest upload. If zero, DefaultManifestTimeout is used.
	Timeout time.Duration
	// AppName is attached to the upload as an App-Name tag.
	// If empty, DefaultAppName is used.
	AppName string
}

// Publish builds the Manifest of |records| and uploads it. It returns the
// manifest's content identifier, or "" if it could not be uploaded.
func (p *ManifestPublisher) Publish(ctx context.Context, records []UploadRecord) string {
	return p.PublishManifest(ctx, BuildManifest(records))
}

// PublishManifest uploads |m|, returning its content identifier or "" if the
// upload failed. Failures are logged rather than returned. The scratch file
// holding |m| is removed before PublishManifest returns.
func (p *ManifestPublisher) PublishManifest(ctx context.Context, m *Manifest) string {
	var id, err = p.publish(ctx, m)
	if err != nil {
		log.WithFields(log.Fields{"stage": "manifest", "err": err}).Error("failed to upload manifest")
		deployManifestsTotal.WithLabelValues("error").Inc()
		return ""
	}

	log.WithFields(log.Fields{"id": id, "paths": len(m.Paths)}).Info("uploaded manifest")
	deployManifestsTotal.WithLabelValues("success").Inc()
	return id
}

func (p *ManifestPublisher) publish(ctx context.Context, m *Manifest) (string, error) {
	var b, err = m.Marshal()
	if err != nil {
		return "", errors.WithMessage(err, "encoding manifest")
	}

	f, err := afero.TempFile(p.FS, p.TempDir, "manifest-*.json")
	if err != nil {
		return "", errors.WithMessage(err, "creating manifest scratch file")
	}
	var name = f.Name()

	defer func() {
		if rmErr := p.FS.Remove(name); rmErr != nil {
			log.WithFields(log.Fields{"err": rmErr, "path": name}).
				Warn("failed to cleanup manifest scratch file")
		}
	}()

	_, err = f.Write(b)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", errors.WithMessage(err, "writing manifest scratch file")
	}

	var timeout = p.Timeout
	if timeout <= 0 {
		timeout = DefaultManifestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := p.Store.Upload(ctx, stores.UploadRequest{
		Body: func() (io.ReadCloser, error) { return p.FS.Open(name) },
		Size: int64(len(b)),
		Tags: arweave.Tags{
			{Name: ContentTypeTag, Value: ManifestContentType},
			{Name: AppNameTag, Value: appNameOr(p.AppName)},
		},
	})
	if err != nil {
		return "", err
	}
	return res.ID, nil
}
