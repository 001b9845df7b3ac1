package resilience

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voicelink-ai/voicelink/internal/observe"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	sttmock "github.com/voicelink-ai/voicelink/pkg/provider/stt/mock"
)

// newMeteredConfig returns a FallbackConfig whose metrics land in a
// ManualReader for inspection.
func newMeteredConfig(t *testing.T) (FallbackConfig, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return FallbackConfig{Metrics: m}, reader
}

// counterValue sums the datapoints of the named Int64 counter that carry all
// of the given attributes.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: data is %T, want Sum[int64]", name, met.Data)
			}
			for _, dp := range sum.DataPoints {
				match := true
				for _, want := range attrs {
					if got, ok := dp.Attributes.Value(want.Key); !ok || got.Emit() != want.Value.Emit() {
						match = false
						break
					}
				}
				if match {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestFallbackGroup_RecordsRequestCounters(t *testing.T) {
	cfg, reader := newMeteredConfig(t)
	cfg.Kind = "stt"
	fg := NewFallbackGroup("a", "a", cfg)
	fg.AddFallback("b", "b")

	err := fg.Execute(func(v string) error {
		if v == "a" {
			return errTest
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	requests := "voicelink.provider.requests"
	if got := counterValue(t, reader, requests,
		attribute.String("provider", "a"),
		attribute.String("status", "error"),
	); got != 1 {
		t.Errorf("requests{a,error} = %d, want 1", got)
	}
	if got := counterValue(t, reader, requests,
		attribute.String("provider", "b"),
		attribute.String("status", "ok"),
	); got != 1 {
		t.Errorf("requests{b,ok} = %d, want 1", got)
	}
	if got := counterValue(t, reader, "voicelink.provider.errors",
		attribute.String("provider", "a"),
		attribute.String("kind", "stt"),
	); got != 1 {
		t.Errorf("errors{a,stt} = %d, want 1", got)
	}
	if got := counterValue(t, reader, "voicelink.provider.errors",
		attribute.String("provider", "b"),
	); got != 0 {
		t.Errorf("errors{b} = %d, want 0", got)
	}
}

func TestFallbackGroup_OpenBreakerCountedAsOpen(t *testing.T) {
	cfg, reader := newMeteredConfig(t)
	cfg.CircuitBreaker = CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	}
	fg := NewFallbackGroup("a", "a", cfg)
	fg.AddFallback("b", "b")

	// Trip the primary's breaker, then run again: the second pass must skip
	// the primary without counting a provider error against it.
	for range 2 {
		_ = fg.Execute(func(v string) error {
			if v == "a" {
				return errTest
			}
			return nil
		})
	}

	if got := counterValue(t, reader, "voicelink.provider.requests",
		attribute.String("provider", "a"),
		attribute.String("status", "open"),
	); got != 1 {
		t.Errorf("requests{a,open} = %d, want 1", got)
	}
	if got := counterValue(t, reader, "voicelink.provider.errors",
		attribute.String("provider", "a"),
	); got != 1 {
		t.Errorf("errors{a} = %d, want 1", got)
	}
}

func TestSTTFallback_FailoverRecordsKind(t *testing.T) {
	cfg, reader := newMeteredConfig(t)
	primary := &sttmock.Provider{Err: errTest}
	secondary := &sttmock.Provider{}

	f := NewSTTFallback(primary, "primary", cfg)
	f.AddFallback("secondary", secondary)

	if _, err := f.Transcribe(context.Background(), []byte("pcm"), stt.TranscribeConfig{}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got := counterValue(t, reader, "voicelink.provider.requests",
		attribute.String("kind", "stt"),
	); got != 2 {
		t.Errorf("requests{kind=stt} = %d, want 2", got)
	}
}
