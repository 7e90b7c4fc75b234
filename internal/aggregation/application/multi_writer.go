package application

import (
	"context"
	"fmt"
)

// NamedWriter labels a sink for error messages.
type NamedWriter struct {
	Name   string
	Writer ResultWriter
}

// MultiWriter writes results to several sinks in order.
// Each sink receives the whole batch; sinks that are not BatchWriters get one Write per result.
// A failing sink stops the fan-out, so sinks before it keep what they committed.
type MultiWriter struct {
	writers []NamedWriter
}

// NewMultiWriter constructs a MultiWriter; nil writers are skipped.
func NewMultiWriter(writers ...NamedWriter) *MultiWriter {
	kept := make([]NamedWriter, 0, len(writers))
	for _, w := range writers {
		if w.Writer != nil {
			kept = append(kept, w)
		}
	}
	return &MultiWriter{writers: kept}
}

// Len returns the number of sinks.
func (m *MultiWriter) Len() int {
	if m == nil {
		return 0
	}
	return len(m.writers)
}

// Write writes one result to every sink.
func (m *MultiWriter) Write(ctx context.Context, result Result) error {
	return m.WriteAll(ctx, []Result{result})
}

// WriteAll stops at the first failing sink.
func (m *MultiWriter) WriteAll(ctx context.Context, results []Result) error {
	if m == nil {
		return nil
	}
	for _, w := range m.writers {
		if err := writeAll(ctx, w.Writer, results); err != nil {
			return fmt.Errorf("sink %s: %w", w.Name, err)
		}
	}
	return nil
}

func writeAll(ctx context.Context, writer ResultWriter, results []Result) error {
	if batch, ok := writer.(BatchWriter); ok {
		return batch.WriteAll(ctx, results)
	}
	for _, result := range results {
		if err := writer.Write(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

var _ BatchWriter = (*MultiWriter)(nil)
