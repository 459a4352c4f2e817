package checks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.permalaunch.dev/core/ant"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/arweave/arweavetest"
	"go.permalaunch.dev/core/deploy"
	"go.permalaunch.dev/core/stores"
)

func TestChecklistRunsEveryCheck(t *testing.T) {
	var list = Checklist{
		fixedCheck{name: "first", critical: true, result: Result{Passed: false, Message: "broken"}},
		fixedCheck{name: "second", critical: false, result: Result{Passed: false}},
		fixedCheck{name: "third", critical: true, result: Result{Passed: true}},
	}
	var report = list.Run(context.Background())

	require.Len(t, report.Results, 3)
	require.False(t, report.CriticalPassed())

	var first, ok = report.Get("first")
	require.True(t, ok)
	require.Equal(t, Result{Name: "first", Critical: true, Message: "broken"}, first)

	// Failed optional checks don't fail the report.
	report = Checklist{list[1], list[2]}.Run(context.Background())
	require.True(t, report.CriticalPassed())

	_, ok = report.Get("missing")
	require.False(t, ok)
}

func TestWalletCheck(t *testing.T) {
	var wallet = arweavetest.Wallet(t)

	var cases = []struct {
		name     string
		files    map[string]string
		creds    deploy.CredentialProvider
		passed   bool
		message  string
		warnings int
	}{
		{
			name:    "configured",
			creds:   deploy.StaticCredentials(wallet),
			passed:  true,
			message: "wallet configured",
		},
		{
			name:    "not configured",
			creds:   deploy.DeployKeyCredentials(""),
			message: "no wallet configured",
		},
		{
			name:    "malformed",
			creds:   deploy.DeployKeyCredentials("not base64!"),
			message: "wallet is invalid",
		},
		{
			name:    "wallet file not ignored",
			files:   map[string]string{"wallet.json": "{}", ".gitignore": "node_modules/\n"},
			creds:   deploy.StaticCredentials(wallet),
			message: "wallet.json is present but not listed in .gitignore",
		},
		{
			name:    "wallet file without gitignore",
			files:   map[string]string{"wallet.json": "{}"},
			creds:   deploy.StaticCredentials(wallet),
			message: "wallet.json is present but not listed in .gitignore",
		},
		{
			name:    "wallet file ignored",
			files:   map[string]string{"wallet.json": "{}", ".gitignore": "# secrets\n*.json\n!package.json\n"},
			creds:   deploy.StaticCredentials(wallet),
			passed:  true,
			message: "wallet configured",
		},
		{
			name:    "wallet file negated",
			files:   map[string]string{"wallet.json": "{}", ".gitignore": "wallet.json\n!wallet.json\n"},
			creds:   deploy.StaticCredentials(wallet),
			message: "wallet.json is present but not listed in .gitignore",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var fs = buildFiles(t, "/proj", tc.files)
			for name := range tc.files {
				require.NoError(t, fs.Chmod(filepath.Join("/proj", name), 0600))
			}
			var res = WalletCheck{FS: fs, Dir: "/proj", Credentials: tc.creds}.Run(context.Background())

			require.Equal(t, tc.passed, res.Passed)
			require.True(t, strings.HasPrefix(res.Message, tc.message), res.Message)
			require.Empty(t, res.Warnings)

			if tc.passed {
				require.Contains(t, res.Details, "wallet address: "+wallet.Address())
			}
		})
	}
}

func TestWalletCheckWarnsOnPermissions(t *testing.T) {
	var fs = buildFiles(t, "/proj", map[string]string{"wallet.json": "{}", ".gitignore": "/wallet.json\n"})
	require.NoError(t, fs.Chmod("/proj/wallet.json", 0644))

	var res = WalletCheck{
		FS:          fs,
		Dir:         "/proj",
		Credentials: deploy.WalletFileCredentials(fs, ""),
	}.Run(context.Background())

	require.False(t, res.Passed) // No credential is configured.
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "mode 0644")
}

func TestGitIgnores(t *testing.T) {
	for _, tc := range []struct {
		gitignore string
		ignored   bool
	}{
		{"wallet.json", true},
		{"/wallet.json", true},
		{"**/wallet.json", true},
		{"*.json", true},
		{"wallet.*", true},
		{"  wallet.json  \n", true},
		{"dist/\r\n*.json\r\n", true},
		{"wallet.json/", false},
		{"keys/wallet.json", false},
		{"wallet.jsonx", false},
		{"# wallet.json", false},
		{"*.json\n!wallet.json", false},
		{"!wallet.json\n*.json", true},
		{"*.json\n!package.json", true},
		{"", false},
	} {
		var fs = afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/proj/.gitignore", []byte(tc.gitignore), 0644))

		var ignored, err = gitIgnores(fs, "/proj", WalletFileName)
		require.NoError(t, err)
		require.Equal(t, tc.ignored, ignored, "%q", tc.gitignore)
	}

	// A project without a .gitignore ignores nothing.
	var ignored, err = gitIgnores(afero.NewMemMapFs(), "/proj", WalletFileName)
	require.NoError(t, err)
	require.False(t, ignored)
}

func TestResolveBuildFolder(t *testing.T) {
	var fs = buildFiles(t, "/proj", map[string]string{
		"build/index.html": "b",
		".next/server/x":   "n",
	})

	var folder, err = ResolveBuildFolder(fs, "/proj", "")
	require.NoError(t, err)
	require.Equal(t, "/proj/build", folder)

	folder, err = ResolveBuildFolder(fs, "/proj", "out")
	require.NoError(t, err)
	require.Equal(t, "/proj/out", folder)

	folder, err = ResolveBuildFolder(fs, "/proj", "/abs/site")
	require.NoError(t, err)
	require.Equal(t, "/abs/site", folder)

	_, err = ResolveBuildFolder(afero.NewMemMapFs(), "/proj", "")
	require.Equal(t, ErrNoBuildFolder, err)
}

func TestBuildCheck(t *testing.T) {
	var cases = []struct {
		name     string
		folder   string
		files    map[string]string
		passed   bool
		message  string
		warnings []string
	}{
		{
			name:    "no folder",
			message: ErrNoBuildFolder.Error(),
		},
		{
			name:    "not a directory",
			folder:  "dist",
			files:   map[string]string{"dist": "oops"},
			message: "build folder /proj/dist is not a directory",
		},
		{
			name:    "empty",
			files:   map[string]string{"dist/": ""},
			message: "build folder /proj/dist is empty",
		},
		{
			name:    "no index",
			files:   map[string]string{"dist/app.js": "js"},
			message: "no index.html found in /proj/dist",
		},
		{
			name:    "nested index",
			files:   map[string]string{"dist/en/index.html": "<html></html>"},
			passed:  true,
			message: "build found",
			warnings: []string{
				"no index.html at the root; found en/index.html",
			},
		},
		{
			name: "complete",
			files: map[string]string{
				"dist/index.html": `<html><head>
					<link rel="stylesheet" href="./assets/site.css">
					<link rel="canonical" href="other.html">
					<script src="assets/app.js?v=2"></script>
				</head><body>
					<a href="missing.html">not an asset</a>
					<img src="https://example.com/logo.png">
					<img src="data:image/png;base64,AAAA">
				</body></html>`,
				"dist/assets/site.css": "css",
				"dist/assets/app.js":   "js",
			},
			passed:  true,
			message: "build found",
		},
		{
			name: "broken references",
			files: map[string]string{
				"dist/index.html": `<html><head>
					<script src="/assets/app.js"></script>
					<link rel="icon" href="favicon.ico">
				</head><body><img src="img/logo.png"><img src="img/logo.png"></body></html>`,
				"dist/assets/app.js": "js",
			},
			passed:  true,
			message: "build found",
			warnings: []string{
				`index.html references "/assets/app.js" by absolute path, which won't resolve beneath a manifest`,
				`index.html references "favicon.ico", which isn't in the build`,
				`index.html references "img/logo.png", which isn't in the build`,
			},
		},
		{
			name:    "next build",
			files:   map[string]string{".next/server/page.js": "s", ".next/static/chunk.js": "c"},
			passed:  true,
			message: "Next.js build found",
		},
		{
			name:    "incomplete next build",
			files:   map[string]string{".next/server/page.js": "s"},
			message: "Next.js build is missing static/",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var fs = buildFiles(t, "/proj", tc.files)
			var res = BuildCheck{FS: fs, Dir: "/proj", Folder: tc.folder}.Run(context.Background())

			require.Equal(t, tc.passed, res.Passed)
			require.Equal(t, tc.message, res.Message)
			require.Equal(t, tc.warnings, res.Warnings)
		})
	}
}

func TestBuildCheckWarnsOnLargeBuilds(t *testing.T) {
	var fs = buildFiles(t, "/proj", map[string]string{"dist/index.html": "<html></html>"})
	var f, err = fs.Create("/proj/dist/video.mp4")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(LargeBuildBytes+1))
	require.NoError(t, f.Close())

	var res = BuildCheck{FS: fs, Dir: "/proj"}.Run(context.Background())
	require.True(t, res.Passed)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "build is large (105 MB)")
	require.Contains(t, res.Details, "2 files, 105 MB")
}

func TestGitCheck(t *testing.T) {
	var env = map[string]string{"GITHUB_SHA": "0123abcd"}

	var fs = buildFiles(t, "/proj", map[string]string{".github/workflows/deploy.yaml": "on: push"})
	var res = GitCheck{FS: fs, Dir: "/proj", Getenv: func(k string) string { return env[k] }}.Run(context.Background())

	require.True(t, res.Passed)
	require.Empty(t, res.Warnings)
	require.Equal(t, []string{"revision: 0123abcd", "workflow: .github/workflows/deploy.yaml"}, res.Details)

	res = GitCheck{FS: afero.NewMemMapFs(), Dir: "/proj", Getenv: func(string) string { return "" }}.Run(context.Background())
	require.True(t, res.Passed)
	require.Len(t, res.Warnings, 2)

	require.Equal(t, arweave.Tags{{Name: "GIT-HASH", Value: "0123abcd"}}, GitTags(func(k string) string { return env[k] }))
	require.Nil(t, GitTags(func(string) string { return "" }))
}

func TestANTCheck(t *testing.T) {
	const process = "bh9l1cy0aksiL_x9M359faGzM_yjralacHIUo8_nQXM"
	var ctx = context.Background()

	var res = ANTCheck{}.Run(ctx)
	require.True(t, res.Passed)
	require.True(t, res.Skipped)

	res = ANTCheck{Process: "bad", Err: errors.New("ANT process: malformed")}.Run(ctx)
	require.False(t, res.Passed)
	require.Equal(t, "ANT process: malformed", res.Message)

	var reader = &fakeReader{rec: &ant.Record{TransactionID: "abc", TTLSeconds: 60}}
	res = ANTCheck{Process: process, Undername: "docs", Records: reader}.Run(ctx)
	require.True(t, res.Passed)
	require.Equal(t, "docs", reader.undername)
	require.Equal(t, []string{
		"URL: https://docs." + process + ".ar-io.dev",
		"current record: abc (ttl 60s)",
	}, res.Details)

	reader = &fakeReader{err: errors.New("CU unavailable")}
	res = ANTCheck{Process: process, Records: reader}.Run(ctx)
	require.False(t, res.Passed)
	require.Equal(t, `reading record "@": CU unavailable`, res.Message)
}

func TestStoreCheck(t *testing.T) {
	var opened string
	var res = StoreCheck{
		URL: "memory://bucket/",
		Open: func(rawURL string) (stores.Store, error) {
			opened = rawURL
			return stores.NewMemoryStore(nil), nil
		},
	}.Run(context.Background())

	require.Equal(t, "memory://bucket/", opened)
	require.True(t, res.Passed)
	require.Equal(t, []string{"provider: memory"}, res.Details)

	res = StoreCheck{
		URL:  "turbo://upload.example/",
		Open: func(string) (stores.Store, error) { return nil, errors.New("turbo store requires a signing wallet") },
	}.Run(context.Background())

	require.False(t, res.Passed)
	require.Equal(t, "opening content store: turbo store requires a signing wallet", res.Message)
}

type fixedCheck struct {
	name     string
	critical bool
	result   Result
}

func (c fixedCheck) Name() string               { return c.name }
func (c fixedCheck) Critical() bool             { return c.critical }
func (c fixedCheck) Run(context.Context) Result { return c.result }

type fakeReader struct {
	undername string
	rec       *ant.Record
	err       error
}

func (r *fakeReader) GetRecord(_ context.Context, undername string) (*ant.Record, error) {
	r.undername = undername
	return r.rec, r.err
}

// buildFiles writes |files| beneath |dir|. Names ending in "/" are directories.
func buildFiles(t *testing.T, dir string, files map[string]string) afero.Fs {
	var fs = afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(dir, 0755))

	for name, content := range files {
		var full = filepath.Join(dir, name)
		if strings.HasSuffix(name, "/") {
			require.NoError(t, fs.MkdirAll(full, 0755))
			continue
		}
		require.NoError(t, fs.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(content), 0644))
	}
	return fs
}
