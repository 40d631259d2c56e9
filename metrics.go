package lsifq

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.lsp.dev/protocol"
)

// Query outcomes recorded by Metrics.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Metrics holds the collectors shared by instrumented databases.
type Metrics struct {
	queries *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers the query collectors with reg. Registering twice
// against the same registerer reuses the existing collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lsifq",
		Subsystem: "query",
		Name:      "total",
		Help:      "Queries served, by backend, operation and outcome",
	}, []string{"backend", "op", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lsifq",
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "Query latency in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"backend", "op"})

	return &Metrics{
		queries: register(reg, queries),
		latency: register(reg, latency),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// instrumented records every query of the wrapped database.
type instrumented struct {
	Database
	m       *Metrics
	backend string
}

// Instrument wraps db so each query is counted and timed under backend.
func Instrument(db Database, m *Metrics, backend string) Database {
	return &instrumented{Database: db, m: m, backend: backend}
}

func observe[T any](d *instrumented, op string, empty func(T) bool, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	d.m.latency.WithLabelValues(d.backend, op).Observe(time.Since(start).Seconds())

	outcome := OutcomeHit
	switch {
	case err != nil:
		outcome = OutcomeError
	case empty(v):
		outcome = OutcomeMiss
	}
	d.m.queries.WithLabelValues(d.backend, op, outcome).Inc()
	return v, err
}

func noLocations(ls []protocol.Location) bool { return len(ls) == 0 }

func (d *instrumented) Hover(uri string, pos protocol.Position) (*protocol.Hover, error) {
	return observe(d, "hover", func(h *protocol.Hover) bool { return h == nil }, func() (*protocol.Hover, error) {
		return d.Database.Hover(uri, pos)
	})
}

func (d *instrumented) Declarations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return observe(d, "declarations", noLocations, func() ([]protocol.Location, error) {
		return d.Database.Declarations(uri, pos)
	})
}

func (d *instrumented) Definitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return observe(d, "definitions", noLocations, func() ([]protocol.Location, error) {
		return d.Database.Definitions(uri, pos)
	})
}

func (d *instrumented) TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return observe(d, "type_definitions", noLocations, func() ([]protocol.Location, error) {
		return d.Database.TypeDefinitions(uri, pos)
	})
}

func (d *instrumented) Implementations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return observe(d, "implementations", noLocations, func() ([]protocol.Location, error) {
		return d.Database.Implementations(uri, pos)
	})
}

func (d *instrumented) References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error) {
	return observe(d, "references", noLocations, func() ([]protocol.Location, error) {
		return d.Database.References(uri, pos, ctx)
	})
}

func (d *instrumented) DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error) {
	return observe(d, "document_symbols", func(s []protocol.DocumentSymbol) bool { return len(s) == 0 }, func() ([]protocol.DocumentSymbol, error) {
		return d.Database.DocumentSymbols(uri)
	})
}

func (d *instrumented) FoldingRanges(uri string) ([]protocol.FoldingRange, error) {
	return observe(d, "folding_ranges", func(f []protocol.FoldingRange) bool { return len(f) == 0 }, func() ([]protocol.FoldingRange, error) {
		return d.Database.FoldingRanges(uri)
	})
}

func (d *instrumented) Diagnostics(uri string) ([]protocol.Diagnostic, error) {
	return observe(d, "diagnostics", func(ds []protocol.Diagnostic) bool { return len(ds) == 0 }, func() ([]protocol.Diagnostic, error) {
		return d.Database.Diagnostics(uri)
	})
}
