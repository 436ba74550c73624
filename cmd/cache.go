package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the resolution cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print tier sizes, sample keys, and hit statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		snap := env.Store.Debug(ctx)
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode cache status")
		}
		out = append(out, '\n')
		_, err = os.Stdout.Write(out)
		return err
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached entry from both tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Clear(ctx); err != nil {
			return err
		}
		zap.L().Info("cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
