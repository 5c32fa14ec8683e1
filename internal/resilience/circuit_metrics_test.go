package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/resilience"
)

func TestBreakerMetricsTransitions(t *testing.T) {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	breaker := resilience.NewBreaker(1, 0.5, time.Second).WithTarget("viacep").WithClock(clock.Now)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("viacep")))

	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("viacep")))

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("viacep")))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("viacep")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("viacep", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("viacep", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("viacep", "half_open", "closed")))
}
