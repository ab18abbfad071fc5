package tracing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Exporter sends finished traces and spans somewhere durable.
type Exporter interface {
	Export(items []any) error
}

// ConsoleExporter writes items as single-line JSON, one per item. It is
// meant for development and tests.
type ConsoleExporter struct {
	w io.Writer
}

// NewConsoleExporter returns a ConsoleExporter. With a nil writer it
// writes to stdout.
func NewConsoleExporter(w io.Writer) *ConsoleExporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleExporter{w: w}
}

// Export implements the Exporter interface.
func (e *ConsoleExporter) Export(items []any) error {
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshal trace item: %w", err)
		}
		if _, err := fmt.Fprintln(e.w, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// BatchProcessorOptions configure a BatchProcessor.
type BatchProcessorOptions struct {
	// MaxBatchSize triggers an export once this many items are queued.
	MaxBatchSize int
	// FlushInterval is the maximum time an item waits in the queue.
	FlushInterval time.Duration
}

// BatchProcessor buffers ended traces and spans and exports them in
// batches, either when the buffer fills or on a timer. Span and trace
// starts are ignored; only finished items are exported.
type BatchProcessor struct {
	exporter Exporter
	opts     BatchProcessorOptions

	mu    sync.Mutex
	queue []any

	done     chan struct{}
	stopOnce sync.Once
}

// NewBatchProcessor starts a BatchProcessor over the given exporter.
func NewBatchProcessor(exporter Exporter, optFns ...func(o *BatchProcessorOptions)) *BatchProcessor {
	opts := BatchProcessorOptions{
		MaxBatchSize:  128,
		FlushInterval: 5 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	p := &BatchProcessor{
		exporter: exporter,
		opts:     opts,
		done:     make(chan struct{}),
	}

	go p.loop()

	return p
}

func (p *BatchProcessor) loop() {
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Flush()
		case <-p.done:
			return
		}
	}
}

// OnTraceStart implements the Processor interface.
func (p *BatchProcessor) OnTraceStart(t *Trace) {}

// OnTraceEnd implements the Processor interface.
func (p *BatchProcessor) OnTraceEnd(t *Trace) { p.enqueue(t) }

// OnSpanStart implements the Processor interface.
func (p *BatchProcessor) OnSpanStart(s *Span) {}

// OnSpanEnd implements the Processor interface.
func (p *BatchProcessor) OnSpanEnd(s *Span) { p.enqueue(s) }

func (p *BatchProcessor) enqueue(item any) {
	p.mu.Lock()
	p.queue = append(p.queue, item)
	full := len(p.queue) >= p.opts.MaxBatchSize
	p.mu.Unlock()

	if full {
		p.Flush()
	}
}

// Flush exports all queued items immediately.
func (p *BatchProcessor) Flush() {
	p.mu.Lock()
	batch := p.queue
	p.queue = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	_ = p.exporter.Export(batch)
}

// Shutdown stops the background flusher and exports any remaining items.
func (p *BatchProcessor) Shutdown() {
	p.stopOnce.Do(func() { close(p.done) })
	p.Flush()
}
