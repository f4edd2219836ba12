package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesSent        = "dicomsync.files.sent"
	metricChunksTotal      = "dicomsync.chunks.total"
	metricCheckpointWrites = "dicomsync.checkpoint.writes"
	metricRESTOutcomes     = "dicomsync.rest.outcomes"

	attrStatus = "status"
)

// WorkflowMetrics holds the OTel instruments shared across a run's
// Send/Validate stages, mirroring the RED-style instrument set in
// pkg/observability/metrics.go but named for dicomsync's own events.
type WorkflowMetrics struct {
	filesSent        metric.Int64Counter
	chunksTotal      metric.Int64Counter
	checkpointWrites metric.Int64Counter
	restOutcomes     metric.Int64Counter
}

// NewWorkflowMetrics creates the instrument set from the given meter.
func NewWorkflowMetrics(mt metric.Meter) (*WorkflowMetrics, error) {
	filesSent, err := mt.Int64Counter(metricFilesSent,
		metric.WithDescription("Total number of files sent, by outcome status"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricFilesSent, err)
	}

	chunksTotal, err := mt.Int64Counter(metricChunksTotal,
		metric.WithDescription("Total number of send sub-chunks executed"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricChunksTotal, err)
	}

	checkpointWrites, err := mt.Int64Counter(metricCheckpointWrites,
		metric.WithDescription("Total number of checkpoint file writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricCheckpointWrites, err)
	}

	restOutcomes, err := mt.Int64Counter(metricRESTOutcomes,
		metric.WithDescription("Total number of validation REST calls, by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricRESTOutcomes, err)
	}

	return &WorkflowMetrics{
		filesSent:        filesSent,
		chunksTotal:      chunksTotal,
		checkpointWrites: checkpointWrites,
		restOutcomes:     restOutcomes,
	}, nil
}

// RecordFileSent increments the files-sent counter for one outcome
// status (the send_status value, e.g. "SENT_OK", "SEND_FAIL").
func (m *WorkflowMetrics) RecordFileSent(ctx context.Context, status string) {
	m.filesSent.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordChunk increments the sub-chunk counter.
func (m *WorkflowMetrics) RecordChunk(ctx context.Context) {
	m.chunksTotal.Add(ctx, 1)
}

// RecordCheckpointWrite increments the checkpoint-write counter.
func (m *WorkflowMetrics) RecordCheckpointWrite(ctx context.Context) {
	m.checkpointWrites.Add(ctx, 1)
}

// RecordRESTOutcome increments the REST-outcome counter for one
// classification (OK, NOT_FOUND, API_ERROR).
func (m *WorkflowMetrics) RecordRESTOutcome(ctx context.Context, outcome string) {
	m.restOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, outcome)))
}
