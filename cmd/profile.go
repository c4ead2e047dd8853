package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom/internal/ingest"
	"github.com/KaramelBytes/edaloom/internal/logger"
	"github.com/KaramelBytes/edaloom/internal/profile"
	"github.com/KaramelBytes/edaloom/internal/report"
	"github.com/KaramelBytes/edaloom/internal/utils"
)

var (
	prOutput  string
	prFormat  string
	prMinimal bool
	prTitle   string
	prQuiet   bool
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var profileCmd = &cobra.Command{
	Use:   "profile <files...>",
	Short: "Profile one or more CSV files and write a report for each",
	Long: `Profile one or more CSV files (globs allowed) and write a report for each.

With a single input, -o names the output file. With several inputs, -o names a
directory and each report is written as <name>_report.html (or .md). Without -o,
HTML reports go to the current directory and Markdown is printed to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		format := strings.ToLower(strings.TrimSpace(prFormat))
		var gen report.Generator
		ext := ".html"
		switch format {
		case "html", "":
			gen = &report.HTMLGenerator{Dir: cfg.ReportDir, Title: reportTitle(), Charts: true}
		case "markdown", "md":
			gen = &report.MarkdownGenerator{Dir: cfg.ReportDir}
			ext = ".md"
		default:
			return fmt.Errorf("unsupported --format: %s (use html|markdown)", prFormat)
		}
		opt, err := ingestOptions()
		if err != nil {
			return err
		}
		minimal := prMinimal || (!cmd.Flags().Changed("minimal") && cfg.ReportMode == "minimal")

		out := cmd.OutOrStdout()
		errOut := cmd.ErrOrStderr()
		total := len(files)
		var summaries []summary
		for i, path := range files {
			if !prQuiet && total > 1 {
				fmt.Fprintf(errOut, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			res, err := readDataset(cmd.Context(), path, opt, errOut, prQuiet)
			if errors.Is(err, ingest.ErrEmptyDataset) {
				fmt.Fprintf(errOut, "⚠ %s: %v, no report written\n", filepath.Base(path), err)
				summaries = append(summaries, summary{name: filepath.Base(path), empty: true})
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			p, err := profile.Build(ctx(cmd), res.Dataset, profileOptions(minimal))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			p.Notices = res.Notices
			for _, n := range res.Notices {
				fmt.Fprintf(errOut, "⚠ %s: %s\n", filepath.Base(path), n)
			}
			body, err := report.Serve(ctx(cmd), gen, p)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			dest := outputPath(path, ext, total)
			if dest == "" {
				fmt.Fprintln(out, string(body))
			} else {
				if err := utils.SafeWriteFile(dest, body); err != nil {
					return err
				}
				logger.Debug("wrote %s (%d bytes)", dest, len(body))
			}
			summaries = append(summaries, summary{
				name: filepath.Base(path), dest: dest,
				rows: res.Dataset.Rows(), source: res.SourceRows, cols: res.Dataset.Cols(),
				alerts: len(p.Alerts), encoding: res.Encoding,
			})
		}
		if !prQuiet {
			printSummary(errOut, summaries)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&prOutput, "output", "o", "", "output file (single input) or directory (several inputs)")
	profileCmd.Flags().StringVar(&prFormat, "format", "html", "report format: html | markdown")
	profileCmd.Flags().BoolVar(&prMinimal, "minimal", false, "skip correlations, histograms and skewness checks")
	profileCmd.Flags().StringVar(&prTitle, "title", "", "report title (overrides config)")
	profileCmd.Flags().BoolVar(&prQuiet, "quiet", false, "suppress progress and non-essential output")
}

func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}

func reportTitle() string {
	if prTitle != "" {
		return prTitle
	}
	return cfg.ReportTitle
}

// expandInputs resolves globs, drops duplicates and sorts the result.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// readDataset ingests path, showing a byte progress bar unless quiet.
func readDataset(c context.Context, path string, opt ingest.Options, progress io.Writer, quiet bool) (*ingest.Result, error) {
	if c == nil {
		c = context.Background()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if !quiet {
		if info, err := f.Stat(); err == nil && info.Size() > 0 {
			bar := progressbar.NewOptions64(info.Size(),
				progressbar.OptionSetWriter(progress),
				progressbar.OptionSetDescription("reading "+filepath.Base(path)),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
			)
			defer func() { _ = bar.Finish() }()
			r = io.TeeReader(f, bar)
		}
	}
	return ingest.Ingest(c, r, filepath.Base(path), opt)
}

// outputPath returns "" when the report should go to stdout.
func outputPath(input, ext string, total int) string {
	name := report.DownloadName(input, ext)
	switch {
	case prOutput == "" && ext == ".md":
		return ""
	case prOutput == "":
		return name
	case total > 1 || isDir(prOutput):
		return filepath.Join(prOutput, name)
	}
	return prOutput
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

type summary struct {
	name, dest, encoding string
	rows, source, cols   int
	alerts               int
	empty                bool
}

func printSummary(w io.Writer, rows []summary) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Profiled %d file(s)", len(rows))))
	for _, s := range rows {
		if s.empty {
			fmt.Fprintf(w, "%s %s %s\n", warnStyle.Render("⚠"), s.name, mutedStyle.Render("(empty, skipped)"))
			continue
		}
		shape := fmt.Sprintf("%d rows × %d cols", s.rows, s.cols)
		if s.source > s.rows {
			shape = fmt.Sprintf("%d of %d rows × %d cols", s.rows, s.source, s.cols)
		}
		dest := s.dest
		if dest == "" {
			dest = "stdout"
		}
		fmt.Fprintf(w, "%s %s: %s, %d alerts, %s → %s\n", okStyle.Render("✓"), s.name, shape, s.alerts, s.encoding, mutedStyle.Render(dest))
	}
}

// userMessage adds a hint to the error classes a user can act on.
func userMessage(err error) string {
	var (
		de *ingest.DecodeError
		pe *ingest.ParseError
		fe *report.FileError
	)
	switch {
	case errors.As(err, &de):
		return fmt.Sprintf("%v\n  Try --encoding with the file's code page (e.g. windows-1252)", err)
	case errors.As(err, &pe):
		return fmt.Sprintf("%v\n  Check quoting on that line, or pass --delimiter", err)
	case errors.As(err, &fe):
		return fmt.Sprintf("%v\n  Check that report_dir is writable", err)
	}
	return err.Error()
}
