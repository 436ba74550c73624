// Package sitefile loads site queries from local and remote files. CSV,
// XLSX, YAML, and JSON inputs are supported; remote sources are fetched
// over HTTP or FTP before parsing.
package sitefile

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/fetcher"
	"github.com/sells-group/atlas-cli/internal/model"
)

// Load reads site queries from a local file, dispatching on the
// extension.
func Load(path string) ([]model.SiteQuery, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".json":
		return loadJSON(path)
	default:
		return nil, eris.Errorf("sitefile: unsupported extension %q", filepath.Ext(path))
	}
}

// SourceOptions configures remote fetching for LoadSource.
type SourceOptions struct {
	HTTP    fetcher.Fetcher
	FTP     fetcher.Fetcher
	TempDir string
}

func (o SourceOptions) http() fetcher.Fetcher {
	if o.HTTP != nil {
		return o.HTTP
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
}

func (o SourceOptions) ftp() fetcher.Fetcher {
	if o.FTP != nil {
		return o.FTP
	}
	return fetcher.NewFTPFetcher(fetcher.FTPOptions{})
}

// LoadSource reads site queries from a local path or an http(s)/ftp URL.
// Remote files are downloaded to a temp file first so the format dispatch
// in Load applies either way.
func LoadSource(ctx context.Context, source string, opts SourceOptions) ([]model.SiteQuery, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return loadRemote(ctx, opts.http(), source, opts.TempDir)
	case strings.HasPrefix(source, "ftp://"):
		return loadRemote(ctx, opts.ftp(), source, opts.TempDir)
	default:
		return Load(source)
	}
}

func loadRemote(ctx context.Context, f fetcher.Fetcher, source, tempDir string) ([]model.SiteQuery, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, eris.Wrapf(err, "sitefile: parse source url %s", source)
	}

	tmp, err := os.CreateTemp(tempDir, "sites-*"+filepath.Ext(u.Path))
	if err != nil {
		return nil, eris.Wrap(err, "sitefile: create temp file")
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path) //nolint:errcheck

	n, err := f.DownloadToFile(ctx, source, path)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("sitefile: downloaded source",
		zap.String("source", source),
		zap.Int64("bytes", n),
	)

	return Load(path)
}

// assignIDs fills in positional identifiers for rows without one and
// drops rows with no content at all.
func assignIDs(sites []model.SiteQuery) []model.SiteQuery {
	out := make([]model.SiteQuery, 0, len(sites))
	for _, site := range sites {
		if isBlank(site) {
			continue
		}
		if strings.TrimSpace(site.ID) == "" {
			site.ID = positionalID(len(out) + 1)
		}
		out = append(out, site)
	}
	return out
}

func isBlank(site model.SiteQuery) bool {
	fields := []string{site.ID, site.Name, site.Address, site.City, site.State, site.Country}
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return len(site.QueryHints) == 0
}

func positionalID(n int) string {
	return fmt.Sprintf("site-%d", n)
}

// splitHints splits a ";"-separated hints cell.
func splitHints(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	hints := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			hints = append(hints, p)
		}
	}
	if len(hints) == 0 {
		return nil
	}
	return hints
}
