package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/edaloom/internal/ingest"
)

const tidesCSV = "station,height_m,surge,observed\n" +
	"Brest,6.1,low,2024-01-02\n" +
	"Brest,5.8,low,2024-01-03\n" +
	"Cherbourg,4.9,high,2024-01-02\n" +
	"Cherbourg,5.2,high,2024-01-03\n" +
	"Dieppe,7.4,low,2024-01-02\n"

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	})
}

// runCmd executes the root command with HOME pointed at a temp dir and
// returns what the command wrote to stdout and stderr.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
		for _, sub := range c.Commands() {
			resetFlags(sub.Flags())
		}
	}
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	_, err := rootCmd.ExecuteC()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestProfileWritesHTMLReport(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "tides.csv", tidesCSV)
	dest := filepath.Join(dir, "out.html")

	_, stderr, err := runCmd(t, "profile", in, "-o", dest, "--title", "Tide gauges")
	require.NoError(t, err)

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	body := string(b)
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, "Tide gauges")
	assert.Contains(t, body, "height_m")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, stderr, "tides.csv: 5 rows × 4 cols")
}

func TestProfileMarkdownToStdout(t *testing.T) {
	in := writeFile(t, t.TempDir(), "tides.csv", tidesCSV)

	stdout, _, err := runCmd(t, "profile", in, "--format", "markdown", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[DATASET SUMMARY]")
	assert.Contains(t, stdout, "File: tides.csv")
	assert.Contains(t, stdout, "- numeric: height_m")
	assert.Contains(t, stdout, "- excluded: observed")
}

func TestProfileMinimalSkipsCorrelations(t *testing.T) {
	in := writeFile(t, t.TempDir(), "tides.csv", "a,b\n1,2\n2,4\n3,6\n4,8\n")

	stdout, _, err := runCmd(t, "profile", in, "--format", "md", "--minimal", "--quiet")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "[CORRELATIONS]")

	stdout, _, err = runCmd(t, "profile", in, "--format", "md", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[CORRELATIONS]")
}

func TestProfileGlobWritesOneReportPerFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "north.csv", tidesCSV)
	writeFile(t, dir, "south.csv", tidesCSV)
	outDir := filepath.Join(dir, "reports")

	_, _, err := runCmd(t, "profile", filepath.Join(dir, "*.csv"), "-o", outDir, "--quiet")
	require.NoError(t, err)
	for _, name := range []string{"north_report.html", "south_report.html"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
}

func TestProfileEmptyFileWarnsAndContinues(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.csv", "station,height_m\n")
	full := writeFile(t, dir, "full.csv", tidesCSV)
	outDir := filepath.Join(dir, "out")

	_, stderr, err := runCmd(t, "profile", empty, full, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "⚠ empty.csv")
	_, err = os.Stat(filepath.Join(outDir, "empty_report.html"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(outDir, "full_report.html"))
	assert.NoError(t, err)
}

func TestProfileRaggedFileFails(t *testing.T) {
	in := writeFile(t, t.TempDir(), "bad.csv", "a,b\n1,2\n3,4,5\n")

	_, _, err := runCmd(t, "profile", in, "--format", "md", "--quiet")
	var pe *ingest.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, userMessage(err), "--delimiter")
}

func TestProfileRejectsUnknownFormat(t *testing.T) {
	in := writeFile(t, t.TempDir(), "tides.csv", tidesCSV)
	_, _, err := runCmd(t, "profile", in, "--format", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported --format")
}

func TestProfileNoMatches(t *testing.T) {
	_, _, err := runCmd(t, "profile", filepath.Join(t.TempDir(), "*.csv"))
	require.Error(t, err)
}

func TestChartWritesSVG(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "tides.csv", tidesCSV)
	dest := filepath.Join(dir, "height.svg")

	_, _, err := runCmd(t, "chart", in, "--x", "height_m", "-o", dest)
	require.NoError(t, err)
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "<svg"))

	stdout, _, err := runCmd(t, "chart", in, "--kind", "bar", "--x", "station")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "<svg"))

	_, _, err = runCmd(t, "chart", in, "--kind", "bar", "--x", "height_m")
	require.Error(t, err)

	_, _, err = runCmd(t, "chart", in, "--kind", "pie", "--x", "station")
	require.Error(t, err)
}

func TestConfigSetAndShow(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	stdout, _, err := runCmd(t, "--config", cfgPath, "config", "set", "max_rows", "500")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved config")

	stdout, _, err = runCmd(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "max_rows: 500\n")
	assert.Contains(t, stdout, "report_mode: explorative\n")

	_, _, err = runCmd(t, "--config", cfgPath, "config", "set", "report_mode", "verbose")
	require.Error(t, err)
	_, _, err = runCmd(t, "--config", cfgPath, "config", "set", "colour", "blue")
	require.Error(t, err)
}

func TestServerOptionsFromConfig(t *testing.T) {
	_, _, err := runCmd(t, "config", "show")
	require.NoError(t, err)
	cfg.MaxUploadMB = 3
	cfg.ReportMode = "minimal"

	opt, err := serverOptions()
	require.NoError(t, err)
	assert.Equal(t, int64(3<<20), opt.MaxUploadBytes)
	assert.Equal(t, "minimal", opt.DefaultMode)
	assert.True(t, opt.Profile.Minimal)
	assert.Equal(t, 100000, opt.Ingest.MaxRows)
}

func TestParseLocale(t *testing.T) {
	po, err := parseLocale("comma", "space")
	require.NoError(t, err)
	assert.Equal(t, ',', po.DecimalSeparator)
	assert.Equal(t, ' ', po.ThousandsSeparator)

	_, err = parseLocale("x", "")
	require.Error(t, err)
}
