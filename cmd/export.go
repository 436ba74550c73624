package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/atlas-cli/internal/sitefile"
	"github.com/sells-group/atlas-cli/pkg/geocode"
)

var (
	exportInput    string
	exportOutput   string
	exportFormat   string
	exportForce    bool
	exportParallel int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Resolve sites and write a geographic artifact",
	Long:  "Resolves a site batch (served from cache where possible) and writes it as GeoJSON, shapefile, CSV, or JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		sites, err := sitefile.LoadSource(ctx, exportInput, sourceOptions())
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			return eris.Errorf("no sites found in %s", exportInput)
		}

		results := env.Coordinator.ResolveAll(ctx, sites, geocode.BatchOptions{
			ForceRefresh:  exportForce,
			ParallelLimit: exportParallel,
		})
		logSummary(results)

		format := exportFormat
		if format == "" {
			format = inferFormat(exportOutput)
		}
		return writeResults(exportOutput, format, results)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportInput, "input", "i", "", "site file path or http(s)/ftp URL (csv, xlsx, yaml, json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (.geojson, .shp, .csv, .json)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: geojson, shp, csv, json (default inferred from output path)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "bypass cache reads and re-query the provider")
	exportCmd.Flags().IntVar(&exportParallel, "parallel", 0, "worker limit (default from config)")
	_ = exportCmd.MarkFlagRequired("input")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}
