package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom/internal/charts"
	"github.com/KaramelBytes/edaloom/internal/ingest"
	"github.com/KaramelBytes/edaloom/internal/utils"
)

var (
	chKind   string
	chX      string
	chY      string
	chBins   int
	chTop    int
	chOutput string
)

var chartCmd = &cobra.Command{
	Use:   "chart <file>",
	Short: "Render an SVG chart for one or two columns of a CSV file",
	Long: `Render an SVG chart for a CSV column.

  histogram  numeric --x
  bar        categorical --x (top values plus "(other)")
  scatter    numeric --x against numeric --y`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := charts.ParseKind(chKind)
		if err != nil {
			return err
		}
		if strings.TrimSpace(chX) == "" {
			return fmt.Errorf("--x is required")
		}
		opt, err := ingestOptions()
		if err != nil {
			return err
		}
		res, err := readDataset(cmd.Context(), args[0], opt, cmd.ErrOrStderr(), true)
		if errors.Is(err, ingest.ErrEmptyDataset) {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s: %v, nothing to chart\n", filepath.Base(args[0]), err)
			return nil
		}
		if err != nil {
			return err
		}
		bins := chBins
		if bins <= 0 {
			bins = cfg.HistogramBins
		}
		top := chTop
		if top <= 0 {
			top = cfg.TopValues
		}
		svg, err := charts.ForColumn(res.Dataset, charts.Request{Kind: kind, X: chX, Y: chY, Bins: bins, TopN: top})
		if err != nil {
			return err
		}
		if chOutput == "" {
			_, err = cmd.OutOrStdout().Write(svg)
			return err
		}
		if err := utils.SafeWriteFile(chOutput, svg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s chart of %s → %s\n", okStyle.Render("✓"), kind, chX, chOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVar(&chKind, "kind", "histogram", "chart kind: histogram | bar | scatter")
	chartCmd.Flags().StringVar(&chX, "x", "", "column to chart")
	chartCmd.Flags().StringVar(&chY, "y", "", "second column (scatter only)")
	chartCmd.Flags().IntVar(&chBins, "bins", 0, "histogram bins (default from config)")
	chartCmd.Flags().IntVar(&chTop, "top", 0, "bars to draw before grouping the rest as (other)")
	chartCmd.Flags().StringVarP(&chOutput, "output", "o", "", "write SVG to file instead of stdout")
}
