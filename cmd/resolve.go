package main

import (
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/export"
	"github.com/sells-group/atlas-cli/internal/model"
	"github.com/sells-group/atlas-cli/internal/sitefile"
	"github.com/sells-group/atlas-cli/pkg/geocode"
)

var (
	resolveInput    string
	resolveOutput   string
	resolveFormat   string
	resolveForce    bool
	resolveParallel int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a batch of sites to coordinates",
	Long:  "Loads site queries from a local file or URL (csv, xlsx, yaml, json), resolves them through the cache and provider, and writes the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		sites, err := sitefile.LoadSource(ctx, resolveInput, sourceOptions())
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			return eris.Errorf("no sites found in %s", resolveInput)
		}

		results := env.Coordinator.ResolveAll(ctx, sites, geocode.BatchOptions{
			ForceRefresh:  resolveForce,
			ParallelLimit: resolveParallel,
		})
		logSummary(results)

		format := resolveFormat
		if format == "" {
			format = inferFormat(resolveOutput)
		}
		return writeResults(resolveOutput, format, results)
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveInput, "input", "i", "", "site file path or http(s)/ftp URL (csv, xlsx, yaml, json)")
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "", "output path (default stdout)")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "", "output format: json, csv, geojson, shp (default inferred from output path)")
	resolveCmd.Flags().BoolVar(&resolveForce, "force", false, "bypass cache reads and re-query the provider")
	resolveCmd.Flags().IntVar(&resolveParallel, "parallel", 0, "worker limit (default from config)")
	_ = resolveCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(resolveCmd)
}

func logSummary(results []model.ResolvedSite) {
	var resolved, unresolved, cached int
	for _, r := range results {
		if r.Resolved() {
			resolved++
		} else {
			unresolved++
		}
		if r.Cached {
			cached++
		}
	}
	zap.L().Info("batch complete",
		zap.Int("sites", len(results)),
		zap.Int("resolved", resolved),
		zap.Int("unresolved", unresolved),
		zap.Int("cached", cached),
	)
}

// inferFormat picks an output format from the path extension, defaulting
// to JSON.
func inferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".geojson":
		return "geojson"
	case ".shp":
		return "shp"
	default:
		return "json"
	}
}

// writeResults writes the result set to path (stdout when empty) in the
// given format.
func writeResults(path, format string, results []model.ResolvedSite) error {
	if format == "shp" {
		if path == "" {
			return eris.New("shapefile output requires --output")
		}
		n, err := export.WriteShapefile(path, results)
		if err != nil {
			return err
		}
		zap.L().Info("wrote shapefile", zap.String("path", path), zap.Int("points", n))
		return nil
	}

	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create output %s", path)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	switch format {
	case "json":
		return export.WriteJSON(w, results)
	case "csv":
		return export.WriteCSV(w, results)
	case "geojson":
		n, err := export.WriteGeoJSON(w, results)
		if err != nil {
			return err
		}
		if path != "" {
			zap.L().Info("wrote geojson", zap.String("path", path), zap.Int("features", n))
		}
		return nil
	default:
		return eris.Errorf("unsupported output format: %s", format)
	}
}
