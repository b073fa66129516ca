package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewBatchReport_TotalsAndOrder verifies that the report carries the
// aggregate totals and per-host outcomes in slot order with stringified
// classes and durations. Assumes in-memory data and no I/O.
func TestNewBatchReport_TotalsAndOrder(t *testing.T) {
	results := []hostResult{
		{name: "alpha", host: "10.0.0.1", class: classSuccess, detail: "2 vm(s), 1 container(s) maintained", duration: 1500 * time.Millisecond},
		{name: "bravo", host: "10.0.0.2", class: classCredential, detail: `host "bravo" requires environment variable "PVE_B" to be set`, duration: 2 * time.Millisecond},
		{name: "charlie", host: "10.0.0.3", class: classRuntime, detail: "vm 55 backup failed (exit 2)", duration: 900 * time.Millisecond},
	}
	rep := newBatchReport("fleet.toml", true, results)

	require.Equal(t, "fleet.toml", rep.Manifest)
	require.True(t, rep.DryRun)
	_, err := time.Parse(time.RFC3339, rep.Generated)
	require.NoError(t, err)

	require.Equal(t, batchReportTotals{Succeeded: 1, Credential: 1, Failed: 1}, rep.Totals)
	require.Len(t, rep.Hosts, 3)
	require.Equal(t, "alpha", rep.Hosts[0].Name)
	require.Equal(t, "success", rep.Hosts[0].Outcome)
	require.Equal(t, "1.5s", rep.Hosts[0].Duration)
	require.Equal(t, "credential-error", rep.Hosts[1].Outcome)
	require.Equal(t, "failure", rep.Hosts[2].Outcome)
}

// TestSaveBatchReport_RoundTrip verifies the saved file parses back with the
// same content and that parent directories are created on demand.
func TestSaveBatchReport_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "nightly.yaml")
	rep := newBatchReport("fleet.toml", false, []hostResult{
		{name: "alpha", host: "10.0.0.1", class: classSuccess, duration: time.Second},
	})
	require.NoError(t, saveBatchReport(path, rep))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got batchReport
	require.NoError(t, yaml.Unmarshal(raw, &got))
	require.Equal(t, rep.Hosts, got.Hosts)
	require.Equal(t, rep.Totals, got.Totals)
	require.NotContains(t, string(raw), "dry_run", "false dry_run is omitted")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestWriteBatchReport_ErrorOnWrite(t *testing.T) {
	rep := newBatchReport("fleet.toml", false, nil)
	require.Error(t, writeBatchReport(failingWriter{}, rep))
}
