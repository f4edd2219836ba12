// Package telemetry writes the events.csv ledger every workflow appends
// to, and mirrors chunk-completion events onto the metrics registry
// (spec.md §3, Event; SPEC_FULL.md §11).
package telemetry

import (
	"context"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/obs"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
)

// Writer appends domain.Event rows to a run's events.csv and mirrors
// chunk-completion events onto obs.WorkflowMetrics. A Writer is scoped
// to a single run and, like artifact.Writer, is not safe for concurrent
// use from more than one workflow at a time.
type Writer struct {
	csv     *artifact.Writer
	path    string
	metrics *obs.WorkflowMetrics
}

// NewWriter builds a telemetry Writer for one run, resolving events.csv
// through layout and stamping rows with clock.
func NewWriter(layout *runlayout.Resolver, clock *clockid.Clock, metrics *obs.WorkflowMetrics) *Writer {
	return &Writer{
		csv:     &artifact.Writer{Clock: clock},
		path:    layout.ResolveWrite(runlayout.Events),
		metrics: metrics,
	}
}

var eventFields = []string{"run_id", "event_type", "message", "ref"}

// Emit appends one event row and, for chunk completions, increments the
// sub-chunk counter (spec.md §3).
func (w *Writer) Emit(e domain.Event) error {
	if err := w.csv.AppendRow(w.path, eventFields, map[string]string{
		"run_id":     e.RunID,
		"event_type": string(e.Type),
		"message":    e.Message,
		"ref":        e.Ref,
	}); err != nil {
		return err
	}

	if w.metrics != nil && e.Type == domain.EventChunkEnd {
		w.metrics.RecordChunk(context.Background())
	}

	return nil
}
