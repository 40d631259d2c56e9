package lsifq

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestInstrument_CountsOutcomes(t *testing.T) {
	t.Parallel()
	paths := fixtures(t)
	reg := prometheus.NewRegistry()
	db := openDB(t, paths[FormatGraph], WithMetrics(reg))

	_, err := db.Definitions(bTS, at(1, 1))
	require.NoError(t, err)
	_, err = db.Definitions(bTS, at(30, 0))
	require.NoError(t, err)
	_, err = db.Hover(aTS, at(5, 1))
	require.NoError(t, err)
	// Not instrumented.
	_, err = db.Documents()
	require.NoError(t, err)

	m := NewMetrics(reg)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(FormatGraph, "definitions", OutcomeHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(FormatGraph, "definitions", OutcomeMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(FormatGraph, "hover", OutcomeHit)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.latency))

	require.NoError(t, db.Close())
	_, err = db.References(bTS, at(1, 1), protocol.ReferenceContext{})
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(FormatGraph, "references", OutcomeError)))
}

func TestNewMetrics_SharesRegisteredCollectors(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	a := NewMetrics(reg)
	b := NewMetrics(reg)
	assert.Same(t, a.queries, b.queries)
	assert.Same(t, a.latency, b.latency)
}

func TestInstrument_PerBackendLabels(t *testing.T) {
	t.Parallel()
	paths := fixtures(t)
	reg := prometheus.NewRegistry()
	ctx := context.Background()

	for _, format := range []string{FormatLSIF, FormatBlob} {
		db, err := Open(ctx, paths[format], WithMetrics(reg))
		require.NoError(t, err)
		_, err = db.TypeDefinitions(bTS, at(1, 1))
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}

	m := NewMetrics(reg)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(FormatLSIF, "type_definitions", OutcomeMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(FormatBlob, "type_definitions", OutcomeMiss)))
}
