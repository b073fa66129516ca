package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// batchReport is the top-level structure serialized to the optional report
// file: run metadata, aggregate totals, and per-host outcomes in manifest
// order.
type batchReport struct {
	Manifest  string            `yaml:"manifest"`
	Generated string            `yaml:"generated"`
	DryRun    bool              `yaml:"dry_run,omitempty"`
	Totals    batchReportTotals `yaml:"totals"`
	Hosts     []hostReport      `yaml:"hosts"`
}

type batchReportTotals struct {
	Succeeded  int `yaml:"succeeded"`
	Credential int `yaml:"credential_blocked"`
	Failed     int `yaml:"failed"`
}

// hostReport records the outcome of one host's maintenance cycle.
type hostReport struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Outcome  string `yaml:"outcome"`
	Detail   string `yaml:"detail,omitempty"`
	Duration string `yaml:"duration"`
}

// newBatchReport folds finished batch slots into the report structure.
func newBatchReport(manifestPath string, dryRun bool, results []hostResult) *batchReport {
	totals := totalsFor(results)
	report := &batchReport{
		Manifest:  manifestPath,
		Generated: time.Now().UTC().Format(time.RFC3339),
		DryRun:    dryRun,
		Totals: batchReportTotals{
			Succeeded:  totals.succeeded,
			Credential: totals.credential,
			Failed:     totals.failed,
		},
	}
	for _, res := range results {
		report.Hosts = append(report.Hosts, hostReport{
			Name:     res.name,
			Host:     res.host,
			Outcome:  res.class.String(),
			Detail:   res.detail,
			Duration: res.duration.Round(time.Millisecond).String(),
		})
	}
	return report
}

// writeBatchReport serializes the report to YAML with two-space indentation
// and writes it through a buffered writer.
func writeBatchReport(w io.Writer, r *batchReport) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(buf.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

// saveBatchReport writes the report to path, creating parent directories as
// needed.
func saveBatchReport(path string, r *batchReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := writeBatchReport(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
