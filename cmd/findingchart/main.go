package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"findingchart/internal/config"
	"findingchart/internal/generator"
	"findingchart/internal/render"
	"findingchart/internal/service"
	"findingchart/internal/storage"
	"findingchart/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "findingchart",
		Short: "Render finding charts for lists of astronomical targets",
		Long: `findingchart parses target lists, fetches a survey image per target,
draws compass, scale bar and position markers over it and packages
the charts into charts.zip.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: built-in defaults and FINDINGCHART_* env)")

	rootCmd.AddCommand(newServeCmd(), newRenderCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and logger and wires a chart service on store.
func setup(store func(*config.Config) storage.Storage) (*config.Config, *service.ChartService, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}

	client, err := generator.NewClient(cfg.Generator)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create generator client: %w", err)
	}

	icons, err := render.LoadIcons(cfg.Chart.LoadingIcon, cfg.Chart.FailedIcon)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load icons: %w", err)
	}

	return cfg, service.NewChartService(cfg, store(cfg), client, icons), nil
}
