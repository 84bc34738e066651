package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"findingchart/internal/archive"
	"findingchart/internal/config"
	"findingchart/internal/model"
	"findingchart/internal/parser"
	"findingchart/internal/storage"
)

type renderFlags struct {
	output       string
	sheet        string
	format       string
	size         string
	survey       string
	outEpoch     string
	properMotion string
	annotate     bool
	wait         time.Duration
}

func newRenderCmd() *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render [targets.txt|targets.xlsx|-]",
		Short: "Render charts for a target list and write them to a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.OutOrStdout(), args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", archive.FileName, "Output archive path")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet to read from an .xlsx input (default: active sheet)")
	cmd.Flags().StringVar(&f.format, "format", string(model.FormatSexagesimalColon), "Coordinate format: decimal, sexagesimal-colon, sexagesimal-space")
	cmd.Flags().StringVar(&f.size, "size", "8", "Field size in arcmin")
	cmd.Flags().StringVar(&f.survey, "survey", "", "Survey name (default: chart.default_survey)")
	cmd.Flags().StringVar(&f.outEpoch, "outepoch", "", "Observing epoch (default: now)")
	cmd.Flags().StringVar(&f.properMotion, "propermotion", string(model.UnitArcsec), "Proper motion unit: as or mas")
	cmd.Flags().BoolVar(&f.annotate, "annotate", false, "Add title, comment and coordinate captions")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "Give up waiting for images after this long (0 waits forever)")

	return cmd
}

func readTargets(input, sheet string) (string, error) {
	if strings.EqualFold(filepath.Ext(input), ".xlsx") {
		file, err := os.Open(input)
		if err != nil {
			return "", err
		}
		defer file.Close()

		lines, err := parser.LinesFromSpreadsheet(file, sheet)
		if err != nil {
			return "", err
		}
		return strings.Join(lines, "\n"), nil
	}

	var r io.Reader = os.Stdin
	if input != "-" {
		file, err := os.Open(input)
		if err != nil {
			return "", err
		}
		defer file.Close()
		r = file
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func runRender(out io.Writer, input string, f *renderFlags) error {
	coords, err := readTargets(input, f.sheet)
	if err != nil {
		return fmt.Errorf("failed to read targets: %w", err)
	}

	_, chartService, err := setup(func(*config.Config) storage.Storage {
		return storage.NewMemoryStorage()
	})
	if err != nil {
		return err
	}
	defer chartService.Close()

	chartType := ""
	if f.annotate {
		chartType = "annotated"
	}
	session, err := chartService.Generate(model.GenerateRequest{
		FormOptions: model.FormOptions{
			OutputEpoch:  f.outEpoch,
			Size:         f.size,
			Survey:       f.survey,
			Format:       f.format,
			ProperMotion: f.properMotion,
			Type:         chartType,
		},
		Coords: coords,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if f.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.wait)
		defer cancel()
	}
	if err := chartService.Wait(ctx, session.ID); err != nil {
		// archive what is there; unsettled charts keep their placeholder
		fmt.Fprintf(out, "warning: %v\n", err)
	}

	file, err := os.Create(f.output)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := chartService.WriteArchive(session.ID, file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	final, err := chartService.GetSession(session.ID)
	if err != nil {
		return err
	}
	for _, r := range final.Charts {
		line := fmt.Sprintf("%-20s %s", r.Target.Name, r.Status)
		if r.Error != "" {
			line += " (" + r.Error + ")"
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "wrote %d charts to %s\n", len(final.Charts), f.output)
	return nil
}
