package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/internal/config"
)

func finishedReport() property.BatchReport {
	return property.BatchReport{
		RunID:         "run-1",
		RowsTotal:     3,
		RowsProcessed: 2,
		RowsFailed:    1,
		Failures:      []property.RowFailure{{Row: 3, PropertyID: "P3", Reason: "bad price"}},
		Relational:    property.SinkResult{Attempted: true, Finalized: true},
		Vector:        property.SinkResult{Attempted: true, Finalized: true},
	}
}

func TestRunIngest_PrintsReport(t *testing.T) {
	var out bytes.Buffer
	err := runIngest(context.Background(), &out, func(context.Context) (property.BatchReport, error) {
		return finishedReport(), nil
	})
	require.NoError(t, err)

	var got property.BatchReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got.RowsProcessed)
	assert.Equal(t, []string{"P3"}, got.FailedIDs())
}

func TestRunIngest_FatalErrorPrintsNothing(t *testing.T) {
	var out bytes.Buffer
	err := runIngest(context.Background(), &out, func(context.Context) (property.BatchReport, error) {
		return property.BatchReport{RunID: "run-1"}, fmt.Errorf("%w: row source missing", service.ErrFatalConfig)
	})

	require.ErrorIs(t, err, service.ErrFatalConfig)
	assert.Empty(t, out.String())
}

func TestRunIngest_FinalizationErrorPrintsReportAndFails(t *testing.T) {
	report := finishedReport()
	report.Vector = property.SinkResult{Attempted: true, Error: "qdrant unavailable"}

	var out bytes.Buffer
	err := runIngest(context.Background(), &out, func(context.Context) (property.BatchReport, error) {
		return report, fmt.Errorf("%w: upload points: %w", service.ErrFinalization, errors.New("qdrant unavailable"))
	})

	require.ErrorIs(t, err, service.ErrFinalization)
	assert.Contains(t, out.String(), "qdrant unavailable")
}

func TestRunIngest_UnfinalizedReportFails(t *testing.T) {
	report := finishedReport()
	report.Relational.Finalized = false

	var out bytes.Buffer
	err := runIngest(context.Background(), &out, func(context.Context) (property.BatchReport, error) {
		return report, nil
	})

	require.ErrorIs(t, err, service.ErrFinalization)
	assert.NotEmpty(t, out.String())
}

func TestApplyIngestOverrides(t *testing.T) {
	cfg := config.NewAppConfig()

	got := applyIngestOverrides(cfg, ingestFlags{
		source:       "/data/listings.xlsx",
		certificates: "/data/certs",
		workers:      4,
	})

	assert.Equal(t, "/data/listings.xlsx", got.Assets().RowSource())
	assert.Equal(t, cfg.Assets().ImageDir(), got.Assets().ImageDir())
	assert.Equal(t, "/data/certs", got.Assets().CertificateDir())
	assert.Equal(t, 4, got.WorkerCount())
}

func TestApplyIngestOverrides_NoFlagsKeepsConfig(t *testing.T) {
	cfg := config.NewAppConfig()

	got := applyIngestOverrides(cfg, ingestFlags{})

	assert.Equal(t, cfg.Assets(), got.Assets())
	assert.Equal(t, cfg.WorkerCount(), got.WorkerCount())
}

func TestApplyServeOverrides(t *testing.T) {
	got := applyServeOverrides(config.NewAppConfig(), "127.0.0.1", 9090)

	assert.Equal(t, "127.0.0.1:9090", got.Addr())
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "smartsense version dev")
}

func TestParseFloorplanCommandRequiresImage(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"parse-floorplan"})

	assert.Error(t, cmd.Execute())
}
