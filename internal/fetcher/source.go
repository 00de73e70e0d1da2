package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// IsURL reports whether loc names an http(s) resource rather than a local file.
func IsURL(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

// LocalPath returns a local file path for loc. URLs are downloaded into
// tempDir first; local paths are returned as-is after an existence check.
func LocalPath(ctx context.Context, f Fetcher, loc, tempDir string) (string, error) {
	if !IsURL(loc) {
		if _, err := os.Stat(loc); err != nil {
			return "", eris.Wrapf(err, "source: stat %s", loc)
		}
		return loc, nil
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "source: create temp dir %s", tempDir)
	}
	dest := filepath.Join(tempDir, downloadName(loc))

	zap.L().Info("downloading source", zap.String("url", loc), zap.String("path", dest))
	n, err := f.DownloadToFile(ctx, loc, dest)
	if err != nil {
		return "", eris.Wrapf(err, "source: download %s", loc)
	}
	zap.L().Info("source downloaded", zap.String("path", dest), zap.Int64("bytes", n))

	return dest, nil
}

// Open returns a reader over loc, downloading it first when it is a URL.
func Open(ctx context.Context, f Fetcher, loc, tempDir string) (io.ReadCloser, error) {
	p, err := LocalPath(ctx, f, loc, tempDir)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", p)
	}
	return file, nil
}

// downloadName derives a file name for a downloaded URL from its path.
func downloadName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "source.csv"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || !strings.Contains(name, ".") {
		return "source.csv"
	}
	return name
}
