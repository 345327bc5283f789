package observability

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"nftescrow/core/events"
	"nftescrow/crypto"
)

func TestCallMetricsBeginTracksInflight(t *testing.T) {
	m := RPC()
	before := testutil.ToFloat64(m.calls.WithLabelValues("escrow", "escrow_deposit", "403"))
	gauge := m.inflight.WithLabelValues("escrow")
	start := testutil.ToFloat64(gauge)

	done := m.Begin("escrow", "escrow_deposit")
	require.Equal(t, start+1, testutil.ToFloat64(gauge))
	done(403)
	require.Equal(t, start, testutil.ToFloat64(gauge))
	require.Equal(t, before+1, testutil.ToFloat64(m.calls.WithLabelValues("escrow", "escrow_deposit", "403")))

	m.Reject("", "")
	require.GreaterOrEqual(t, testutil.ToFloat64(m.rejected.WithLabelValues("unknown", "unknown")), 1.0)

	var nilMetrics *CallMetrics
	nilMetrics.Begin("escrow", "x")(200)
	nilMetrics.Reject("escrow", "x")
}

func TestEventMetricsCountsByType(t *testing.T) {
	m := Events()
	var col [20]byte
	col[0] = 9
	label := crypto.FormatCollection(col)
	before := testutil.ToFloat64(m.transfers.WithLabelValues(label))
	m.Emit(events.TokenTransferred{Collection: col, TokenID: big.NewInt(1)})
	m.Emit(nil)
	require.Equal(t, before+1, testutil.ToFloat64(m.transfers.WithLabelValues(label)))
	require.GreaterOrEqual(t, testutil.ToFloat64(m.emitted.WithLabelValues(events.TypeTokenTransferred)), 1.0)
}
