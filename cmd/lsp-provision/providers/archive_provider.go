// Package providers fetches and unpacks remote artifacts for the installers.
package providers

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"golang.org/x/net/http/httpproxy"

	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/logx"
)

const userAgent = "lsp-provision"

// ArchiveProvider downloads files over HTTP(S) and extracts tar.gz
// archives into a billy filesystem.
type ArchiveProvider struct {
	client *http.Client
	logger logx.Logger
}

// Option configures an ArchiveProvider.
type Option func(*ArchiveProvider)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *ArchiveProvider) { p.client = c }
}

// WithLogger sets the logger used for download and extraction progress.
func WithLogger(l logx.Logger) Option {
	return func(p *ArchiveProvider) { p.logger = l }
}

// NewArchiveProvider creates a provider whose client honors HTTP_PROXY,
// HTTPS_PROXY and NO_PROXY.
func NewArchiveProvider(opts ...Option) *ArchiveProvider {
	p := &ArchiveProvider{
		client: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: proxyTransport(),
		},
		logger: logx.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func proxyTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	proxy := httpproxy.FromEnvironment().ProxyFunc()
	t.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
	return t
}

// Download fetches rawURL into dest on fs, replacing any existing file.
func (p *ArchiveProvider) Download(ctx context.Context, fs billy.Filesystem, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "build request for %s: %v", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	p.logger.Debug("downloading", "url", rawURL, "dest", dest)
	start := time.Now()

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "download %s", rawURL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(errors.ErrNotFound, "download %s: status 404", rawURL)
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	if err := fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "create download directory")
	}
	out, err := fs.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fs.Remove(dest)
		return errors.Wrapf(err, "write %s", dest)
	}

	p.logger.Debug("download complete", "url", rawURL, "bytes", n, "duration", time.Since(start))
	return nil
}

// ExtractTarGz unpacks archive into destDir. The archive content must be
// gzip data; entries escaping destDir are rejected.
func (p *ArchiveProvider) ExtractTarGz(fs billy.Filesystem, archive, destDir string) error {
	if err := verifyGzip(fs, archive); err != nil {
		return err
	}

	file, err := fs.Open(archive)
	if err != nil {
		return errors.Wrapf(err, "open %s", archive)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidArchive, "%s: %v", archive, err)
	}
	defer gz.Close()

	if err := fs.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", destDir)
	}

	tr := tar.NewReader(gz)
	files := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidArchive, "read tar header: %v", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "create directory %s", target)
			}

		case tar.TypeReg:
			if err := writeEntry(fs, target, os.FileMode(header.Mode).Perm(), tr); err != nil {
				return err
			}
			files++

		case tar.TypeSymlink:
			resolved := filepath.Join(filepath.Dir(target), header.Linkname)
			if filepath.IsAbs(header.Linkname) || !within(destDir, resolved) {
				return errors.Wrapf(errors.ErrInvalidArchive, "symlink %s points outside %s", header.Name, destDir)
			}
			if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "create parent directory of %s", target)
			}
			if err := fs.Symlink(header.Linkname, target); err != nil {
				return errors.Wrapf(err, "create symlink %s", target)
			}
		}
	}

	p.logger.Debug("archive extracted", "archive", archive, "dest", destDir, "files", files)
	return nil
}

func writeEntry(fs billy.Filesystem, target string, mode os.FileMode, r io.Reader) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "create parent directory of %s", target)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrapf(err, "create %s", target)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return errors.Wrapf(err, "extract %s", target)
	}
	return out.Close()
}

// verifyGzip sniffs the file content rather than trusting its name.
func verifyGzip(fs billy.Filesystem, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return errors.Wrapf(err, "inspect %s", path)
	}
	if !mime.Is("application/gzip") && !mime.Is("application/x-gzip") {
		return errors.Wrapf(errors.ErrInvalidArchive, "%s: expected gzip data, got %s", path, mime.String())
	}
	return nil
}

func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	if !within(root, target) {
		return "", errors.Wrapf(errors.ErrInvalidArchive, "entry %q escapes %s", name, root)
	}
	return target, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

