package checks

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DefaultBuildFolders are tried in order when no build folder is given.
var DefaultBuildFolders = []string{"./dist", "./build", "./.next"}

// LargeBuildBytes is the size above which a build draws a warning.
const LargeBuildBytes = 100 << 20

// ErrNoBuildFolder is returned when no build folder could be resolved.
var ErrNoBuildFolder = errors.New("no build folder found (tried " + strings.Join(DefaultBuildFolders, ", ") + ")")

// ResolveBuildFolder returns |folder| relative to |dir|, or if |folder| is
// empty, the first of DefaultBuildFolders which is a directory.
func ResolveBuildFolder(fs afero.Fs, dir, folder string) (string, error) {
	if folder != "" {
		if filepath.IsAbs(folder) {
			return folder, nil
		}
		return filepath.Join(dir, folder), nil
	}
	for _, candidate := range DefaultBuildFolders {
		var full = filepath.Join(dir, candidate)
		if ok, _ := afero.IsDir(fs, full); ok {
			return full, nil
		}
	}
	return "", ErrNoBuildFolder
}

// BuildCheck verifies that the build folder holds a deployable site.
type BuildCheck struct {
	FS afero.Fs
	// Dir is the project directory.
	Dir string
	// Folder is the build folder. If empty, DefaultBuildFolders are tried.
	Folder string
}

func (BuildCheck) Name() string   { return "build" }
func (BuildCheck) Critical() bool { return true }

func (c BuildCheck) Run(ctx context.Context) Result {
	var res Result

	var root, err = ResolveBuildFolder(c.FS, c.Dir, c.Folder)
	if err != nil {
		return res.fail(err.Error())
	}
	res.Details = append(res.Details, "build folder: "+root)

	if ok, err := afero.IsDir(c.FS, root); err != nil || !ok {
		return res.fail(fmt.Sprintf("build folder %s is not a directory", root))
	}

	var tree, walkErr = scanTree(ctx, c.FS, root)
	if walkErr != nil {
		return res.fail(fmt.Sprintf("reading build folder: %s", walkErr))
	} else if tree.files == 0 {
		return res.fail(fmt.Sprintf("build folder %s is empty", root))
	}
	res.Details = append(res.Details,
		fmt.Sprintf("%d files, %s", tree.files, humanize.Bytes(uint64(tree.bytes))))

	if tree.bytes > LargeBuildBytes {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("build is large (%s); uploads may be slow or costly", humanize.Bytes(uint64(tree.bytes))))
	}

	if path.Base(filepath.ToSlash(root)) == ".next" {
		for _, sub := range []string{"server", "static"} {
			if !tree.dirs[sub] {
				return res.fail(fmt.Sprintf("Next.js build is missing %s/", sub))
			}
		}
		return res.pass("Next.js build found")
	}

	if len(tree.indexes) == 0 {
		return res.fail("no index.html found in " + root)
	} else if !tree.rootIndex {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("no index.html at the root; found %s", strings.Join(tree.indexes, ", ")))
		return res.pass("build found")
	}

	var refs, refErr = indexReferences(c.FS, filepath.Join(root, "index.html"))
	if refErr != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("parsing index.html: %s", refErr))
	}
	for _, ref := range refs {
		if strings.HasPrefix(ref, "/") {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("index.html references %q by absolute path, which won't resolve beneath a manifest", ref))
		} else if !tree.paths[path.Clean(ref)] {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("index.html references %q, which isn't in the build", ref))
		}
	}
	return res.pass("build found")
}

type treeSummary struct {
	files     int
	bytes     int64
	rootIndex bool
	indexes   []string
	// Relative paths of all files, and of top-level directories.
	paths map[string]bool
	dirs  map[string]bool
}

func scanTree(ctx context.Context, fs afero.Fs, root string) (treeSummary, error) {
	var out = treeSummary{paths: make(map[string]bool), dirs: make(map[string]bool)}
	var stack = []string{""}

	for len(stack) != 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var dir = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var infos, err = afero.ReadDir(fs, filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil {
			return out, err
		}
		for _, info := range infos {
			var rel = path.Join(dir, info.Name())

			if info.IsDir() {
				if dir == "" {
					out.dirs[rel] = true
				}
				stack = append(stack, rel)
				continue
			} else if info.Mode()&os.ModeType != 0 && info.Mode()&os.ModeSymlink == 0 {
				continue
			}
			out.files++
			out.bytes += info.Size()
			out.paths[rel] = true

			if info.Name() == "index.html" {
				out.indexes = append(out.indexes, rel)
				out.rootIndex = out.rootIndex || rel == "index.html"
			}
		}
	}
	return out, nil
}

// indexReferences returns local asset references of the HTML document at
// |name|. Only references with a path and no scheme or host are kept.
func indexReferences(fs afero.Fs, name string) ([]string, error) {
	var f, err = fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, err
	}

	var out []string
	var seen = make(map[string]bool)

	doc.Find("script[src], img[src], link[href], source[src]").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "link" {
			var rel, _ = s.Attr("rel")
			if !strings.Contains(rel, "stylesheet") && !strings.Contains(rel, "icon") &&
				!strings.Contains(rel, "manifest") && !strings.Contains(rel, "preload") {
				return
			}
		}
		var ref, ok = s.Attr("src")
		if !ok {
			ref, _ = s.Attr("href")
		}
		if ref = localReference(ref); ref != "" && !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	})
	return out, nil
}

// localReference returns the path of |ref| if it refers to content of the
// deployment, or "" otherwise.
func localReference(ref string) string {
	var u, err = url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return ""
	}
	if strings.HasPrefix(u.Path, "/") {
		return u.Path
	}
	return strings.TrimPrefix(u.Path, "./")
}
