// Package fs implements a content-addressed Store over a local directory.
// It mirrors uploads for inspection and offline testing of deployments.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
	"go.permalaunch.dev/core/stores/common"
	"gopkg.in/yaml.v2"
)

// FileSystem is the filesystem which roots file:// store paths.
// Tests may replace it prior to use.
var FileSystem afero.Fs = afero.NewOsFs()

// StoreQueryArgs contains fields that are parsed from the query arguments
// of a file:// store URL.
type StoreQueryArgs struct {
	// Prefix is prepended to the name of each stored object.
	Prefix string
	// Tags additionally writes a "<name>.tags.yaml" file holding the
	// tags of each object.
	Tags bool
}

type store struct {
	args StoreQueryArgs
	dir  string
}

// New creates a new filesystem Store rooted at the path of the provided URL.
func New(ep *url.URL, _ arweave.Signer) (stores.Store, error) {
	var s = &store{dir: filepath.FromSlash(ep.Path)}

	if err := common.ParseStoreArgs(ep, &s.args); err != nil {
		return nil, err
	} else if s.dir == "" {
		return nil, fmt.Errorf("file store URL %q is missing a path", ep.String())
	}
	return s, nil
}

func (s *store) Provider() string { return "fs" }

func (s *store) Upload(ctx context.Context, req stores.UploadRequest) (stores.UploadResult, error) {
	if info, err := FileSystem.Stat(s.dir); err != nil {
		return stores.UploadResult{}, fmt.Errorf("invalid file store directory %s: %w", s.dir, err)
	} else if !info.IsDir() {
		return stores.UploadResult{}, fmt.Errorf("invalid file store directory %s: not a directory", s.dir)
	}

	var id, err = common.ContentID(req.Body, req.Size)
	if err != nil {
		return stores.UploadResult{}, err
	}
	var fsPath = filepath.Join(s.dir, s.args.Prefix+id)

	if _, err = FileSystem.Stat(fsPath); err == nil {
		log.WithField("path", fsPath).Debug("object exists; skipping write")
		return stores.UploadResult{ID: id}, s.writeTags(fsPath, req.Tags)
	} else if !errors.Is(err, os.ErrNotExist) {
		return stores.UploadResult{}, err
	} else if err = ctx.Err(); err != nil {
		return stores.UploadResult{}, err
	}

	if err = s.write(fsPath, req); err != nil {
		return stores.UploadResult{}, err
	}
	return stores.UploadResult{ID: id}, s.writeTags(fsPath, req.Tags)
}

func (s *store) write(fsPath string, req stores.UploadRequest) error {
	if err := FileSystem.MkdirAll(filepath.Dir(fsPath), 0750); err != nil {
		return err
	}
	var f, err = afero.TempFile(FileSystem, filepath.Dir(fsPath), ".partial-"+filepath.Base(fsPath))
	if err != nil {
		return err
	}
	defer func(name string) {
		if rmErr := FileSystem.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.WithFields(log.Fields{"err": rmErr, "path": fsPath}).
				Warn("failed to cleanup temp file")
		}
	}(f.Name())

	body, err := req.Body()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("opening content: %w", err)
	}
	defer body.Close()

	_, err = io.Copy(f, body)

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = FileSystem.Rename(f.Name(), fsPath)
	}
	return err
}

func (s *store) writeTags(fsPath string, tags arweave.Tags) error {
	if !s.args.Tags {
		return nil
	}
	var b, err = yaml.Marshal(tags)
	if err != nil {
		return err
	}
	return afero.WriteFile(FileSystem, fsPath+".tags.yaml", b, 0640)
}
