package deploy

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
	"golang.org/x/sync/errgroup"
)

// Defaults of a TreeUploader.
const (
	DefaultAppName     = "Permalaunch"
	DefaultFileTimeout = 10 * time.Second
	DefaultConcurrency = 8
)

// Tag names attached to uploaded content.
const (
	ContentTypeTag = "Content-Type"
	AppNameTag     = "App-Name"
)

// UploadRecord is a file which was uploaded, and its content identifier.
type UploadRecord struct {
	// Path relative to the deploy root, with forward-slash separators.
	Path        string `json:"path" yaml:"path"`
	ID          string `json:"id" yaml:"id"`
	Size        int64  `json:"size" yaml:"size"`
	ContentType string `json:"contentType" yaml:"contentType"`
}

// SkippedEntry is a directory entry which was not uploaded.
type SkippedEntry struct {
	Path string `json:"path" yaml:"path"`
	Err  error  `json:"-" yaml:"-"`
}

// TreeResult is the outcome of uploading a directory tree.
type TreeResult struct {
	// Uploaded files, ordered on Path.
	Records []UploadRecord
	// Entries which were skipped, ordered on Path.
	Skipped []SkippedEntry
}

// Bytes returns the total size of uploaded files.
func (r *TreeResult) Bytes() (n int64) {
	for _, rec := range r.Records {
		n += rec.Size
	}
	return n
}

// TreeUploader uploads each regular file of a directory tree to a Store.
type TreeUploader struct {
	// FS from which the tree is read.
	FS afero.Fs
	// Store to which files are uploaded.
	Store stores.Store
	// ContentType maps file paths to MIME types. If nil, LookupContentType is used.
	ContentType ContentTypeFunc
	// Timeout of each file upload. If zero, DefaultFileTimeout is used.
	Timeout time.Duration
	// Concurrency is the maximum number of concurrent uploads.
	// If zero, DefaultConcurrency is used.
	Concurrency int
	// AppName is attached to every upload as an App-Name tag.
	// If empty, DefaultAppName is used.
	AppName string
	// Tags are additional tags attached to every upload.
	Tags arweave.Tags
}

// Upload walks the tree rooted at |root| and uploads each regular file.
// Files which fail to upload, and entries which can't be read or whose
// names aren't valid UTF-8, are logged and skipped. Upload returns an error only if |root| can't be listed, or
// if |ctx| is cancelled.
func (u *TreeUploader) Upload(ctx context.Context, root string) (*TreeResult, error) {
	var (
		result   TreeResult
		mu       sync.Mutex
		group    errgroup.Group
		stack    = []string{""} // Relative paths of directories to walk.
		rootSeen bool
	)
	group.SetLimit(u.concurrency())

	var skip = func(rel string, err error, msg string) {
		log.WithFields(log.Fields{"path": rel, "err": err}).Warn(msg)
		deployFilesTotal.WithLabelValues(statusSkipped).Inc()

		mu.Lock()
		result.Skipped = append(result.Skipped, SkippedEntry{Path: rel, Err: err})
		mu.Unlock()
	}

	for len(stack) != 0 && ctx.Err() == nil {
		var dir = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var names, err = u.readDirNames(filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil && !rootSeen {
			_ = group.Wait()
			return nil, errors.WithMessagef(err, "listing deploy root %s", root)
		} else if err != nil {
			skip(dir, err, "failed to list directory (skipping)")
			continue
		}
		rootSeen = true

		for _, name := range names {
			var rel = path.Join(dir, name)
			var full = filepath.Join(root, filepath.FromSlash(rel))

			// Manifest paths are JSON strings, which can't represent other byte sequences.
			if !utf8.ValidString(rel) {
				skip(rel, errors.New("path is not valid UTF-8"), "skipping entry with an unencodable name")
				continue
			}

			var info, err = u.stat(full)
			if err != nil {
				skip(rel, err, "failed to stat entry (skipping)")
				continue
			} else if info.IsDir() {
				stack = append(stack, rel)
				continue
			} else if !info.Mode().IsRegular() {
				skip(rel, errors.Errorf("not a regular file (mode %s)", info.Mode()), "skipping irregular entry")
				continue
			}

			var size = info.Size()
			group.Go(func() error {
				var rec, err = u.uploadFile(ctx, rel, full, size)
				if err != nil {
					skip(rel, err, "failed to upload file (skipping)")
					return nil
				}
				deployFilesTotal.WithLabelValues(statusUploaded).Inc()
				deployBytesTotal.Add(float64(size))

				mu.Lock()
				result.Records = append(result.Records, rec)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.WithMessage(err, "walking deploy tree")
	}

	sort.Slice(result.Records, func(i, j int) bool { return result.Records[i].Path < result.Records[j].Path })
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })

	return &result, nil
}

func (u *TreeUploader) uploadFile(ctx context.Context, rel, full string, size int64) (UploadRecord, error) {
	var contentType = u.contentType(rel)
	var tags = append(arweave.Tags{
		{Name: ContentTypeTag, Value: contentType},
		{Name: AppNameTag, Value: appNameOr(u.AppName)},
	}, u.Tags...)

	ctx, cancel := context.WithTimeout(ctx, u.timeout())
	defer cancel()

	var started = time.Now()
	var res, err = u.Store.Upload(ctx, stores.UploadRequest{
		Body: func() (io.ReadCloser, error) { return u.FS.Open(full) },
		Size: size,
		Tags: tags,
	})
	if err != nil {
		return UploadRecord{}, err
	}

	log.WithFields(log.Fields{
		"path": rel,
		"id":   res.ID,
		"size": humanize.Bytes(uint64(size)),
		"took": time.Since(started).Round(time.Millisecond),
	}).Info("uploaded file")

	return UploadRecord{Path: rel, ID: res.ID, Size: size, ContentType: contentType}, nil
}

func (u *TreeUploader) readDirNames(dir string) ([]string, error) {
	var f, err = u.FS.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.Readdirnames(-1)
}

// stat returns FileInfo of |full|. Symlinks to files are followed, but
// symlinks to directories are reported as irregular so that walks can't cycle.
func (u *TreeUploader) stat(full string) (os.FileInfo, error) {
	var lst, ok = u.FS.(afero.Lstater)
	if !ok {
		return u.FS.Stat(full)
	}
	var info, _, err = lst.LstatIfPossible(full)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return info, err
	}

	target, err := u.FS.Stat(full)
	if err != nil {
		return nil, err
	} else if target.IsDir() {
		return info, nil
	}
	return target, nil
}

func (u *TreeUploader) contentType(rel string) string {
	if u.ContentType != nil {
		if t := u.ContentType(rel); t != "" {
			return t
		}
		return DefaultContentType
	}
	return LookupContentType(rel)
}

func appNameOr(name string) string {
	if name == "" {
		return DefaultAppName
	}
	return name
}

func (u *TreeUploader) timeout() time.Duration {
	if u.Timeout <= 0 {
		return DefaultFileTimeout
	}
	return u.Timeout
}

func (u *TreeUploader) concurrency() int {
	if u.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return u.Concurrency
}
