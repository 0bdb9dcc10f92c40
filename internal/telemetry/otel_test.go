package telemetry

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "explicit endpoint", cfg: Config{ServiceName: "scam-hunter-test", Version: "1.0.0", Endpoint: "localhost:4318", Insecure: true}},
		{name: "defaults", cfg: Config{}},
		{name: "sampled", cfg: Config{Endpoint: "localhost:4318", SampleRatio: 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := InitTracer(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("InitTracer() error = %v", err)
			}
			// nothing was exported, so shutdown does not reach the collector
			if err := Shutdown(ctx, tp); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestConfigSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 0, want: sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{ratio: 1.5, want: sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{ratio: 0.5, want: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5)).Description()},
	}
	for _, tt := range tests {
		if got := (Config{SampleRatio: tt.ratio}).sampler().Description(); got != tt.want {
			t.Errorf("ratio %v: sampler = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestShutdown_NilProvider(t *testing.T) {
	t.Parallel()
	if err := Shutdown(context.Background(), nil); err != nil {
		t.Errorf("Shutdown() with nil provider should not error, got: %v", err)
	}
}
