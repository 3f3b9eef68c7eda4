// Package telemetry exports OpenTelemetry traces and metrics for procrag.
//
// # Usage
//
//	cfg := telemetry.FromConfig(appCfg.Telemetry, version)
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Packages create spans through package-level otel.Tracer values; New
// installs the providers globally so those tracers start exporting.
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  insecure: true          # local endpoints only
//	  sample_rate: 1.0
//
// Prometheus metrics (procrag_*) are registered separately through promauto
// and served by `procrag watch --metrics-addr`.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry(t)
//	// exercise code
//	tt.AssertSpanExists(t, "Gateway.Query")
package telemetry
