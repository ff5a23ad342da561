package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestIncrementTokensIssued(t *testing.T) {
	before := testutil.ToFloat64(TokensIssuedTotal.WithLabelValues("access"))
	IncrementTokensIssued("access")
	IncrementTokensIssued("access")
	require.Equal(t, before+2, testutil.ToFloat64(TokensIssuedTotal.WithLabelValues("access")))
}

func TestIncrementRotation(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{name: "rotated", result: RotationRotated},
		{name: "revoked", result: RotationRevoked},
		{name: "expired", result: RotationExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(RotationsTotal.WithLabelValues(tt.result))
			IncrementRotation(tt.result)
			require.Equal(t, before+1, testutil.ToFloat64(RotationsTotal.WithLabelValues(tt.result)))
		})
	}
}

func TestCountersAndGauges(t *testing.T) {
	before := testutil.ToFloat64(RevocationsTotal)
	AddRevocations(3)
	require.Equal(t, before+3, testutil.ToFloat64(RevocationsTotal))

	sweptBefore := testutil.ToFloat64(LedgerSweptTotal)
	AddLedgerSwept(2)
	require.Equal(t, sweptBefore+2, testutil.ToFloat64(LedgerSweptTotal))

	SetThrottleTrackedClients(7)
	require.Equal(t, 7.0, testutil.ToFloat64(ThrottleTrackedClientsGauge))

	rejBefore := testutil.ToFloat64(ThrottleRejectionsTotal.WithLabelValues("/auth/login"))
	IncrementThrottleRejection("/auth/login")
	require.Equal(t, rejBefore+1, testutil.ToFloat64(ThrottleRejectionsTotal.WithLabelValues("/auth/login")))
}
