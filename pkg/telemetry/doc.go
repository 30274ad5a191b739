// Package telemetry holds the Prometheus metrics and OpenTelemetry spans
// for input traffic.
//
// Both Metrics and Tracer accept a nil receiver, so transport code calls
// them unconditionally:
//
//	m := telemetry.NewMetrics(telemetry.WithNamespace("game"))
//	tr := telemetry.NewTracer(telemetry.WithTracerName("game/input"))
//
//	ctx, span := tr.Start(ctx, "receive", trace.SpanKindServer)
//	err := receiver.HandlePacket(ctx, payload)
//	m.RecordDecodeError(err)
//	telemetry.End(span, err)
package telemetry
