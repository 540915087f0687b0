package installer

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"lspprovision/cmd/lsp-provision/providers"
	"lspprovision/internal/platform/logx"
	"lspprovision/internal/testutil"
)

const (
	testHome    = "/home/dev"
	testDestDir = "/home/dev/.local/share/lsp-provision/bin"
	testShellRC = "/home/dev/.bashrc"
)

func newTestEnv(t *testing.T) (*Environment, *testutil.FakeRunner) {
	t.Helper()
	r := testutil.NewFakeRunner()
	env := &Environment{
		FS:          testutil.NewFS(),
		Runner:      r,
		Logger:      logx.NewNop(),
		Home:        testHome,
		PathEntries: []string{"/usr/local/bin", "/usr/bin", "/bin"},
		DestDir:     testDestDir,
		ShellRC:     testShellRC,
		TempDir:     "/tmp",
		UserBinDir:  "/home/dev/.local/bin",
	}
	return env, r
}

// fileServer serves body on every path and counts requests.
type fileServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newFileServer(t *testing.T, body []byte) *fileServer {
	t.Helper()
	fs := &fileServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fs.hits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (s *fileServer) fetcher() *providers.ArchiveProvider {
	return providers.NewArchiveProvider(providers.WithHTTPClient(s.Client()))
}

// tempEntries lists what is left in the temporary directory.
func tempEntries(t *testing.T, env *Environment) []string {
	t.Helper()
	entries, err := env.FS.ReadDir(env.TempDir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
