package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func TestCreateMetricsAndRecord(t *testing.T) {
	tel := &Telemetry{Meter: noop.NewMeterProvider().Meter("test"), logger: zap.NewNop()}

	m, err := tel.CreateMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordSubmission(ctx, "ACCEPTED")
		m.RecordJudgeRun(ctx, 20*time.Millisecond, errors.New("timeout"))
		m.RecordAttemptRejection(ctx)
		m.RecordRecomputeFailure(ctx)
		m.RecordLeaderboardRefresh(ctx, nil)
		m.RecordLeaderboardLookup(ctx, true)
	})
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *TelemetryMetrics
	assert.NotPanics(t, func() {
		m.RecordSubmission(context.Background(), "WRONG_ANSWER")
		m.RecordJudgeRun(context.Background(), time.Second, nil)
	})
}
