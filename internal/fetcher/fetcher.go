// Package fetcher reads registry and roster inputs: local or downloaded
// files, CSV with configurable encoding and XLSX workbooks.
package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves remote inputs. HTTPFetcher is the production
// implementation.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	// DownloadToFile returns the number of bytes written to path.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
