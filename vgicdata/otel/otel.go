// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vgicotel provides OpenTelemetry instrumentation for vgicdata
// bridges. It implements the [vgicdata.BridgeHook] interface to record
// interchange metrics, including the alignment-fallback copies that are
// otherwise invisible to callers.
//
// Usage:
//
//	bridge := vgicdata.NewBridge(
//		vgicdata.WithHook(vgicotel.NewHook(vgicotel.DefaultConfig())),
//	)
package vgicotel

import (
	"context"

	"github.com/Query-farm/vgi-cdata/vgicdata"
	"github.com/apache/arrow-go/v18/arrow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "vgi_cdata"

// Config configures OpenTelemetry instrumentation for a bridge.
type Config struct {
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// CustomAttributes are added to every measurement.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config resolving the meter from the global
// OTel SDK at hook construction time.
func DefaultConfig() Config {
	return Config{}
}

// NewHook returns a BridgeHook recording interchange metrics.
func NewHook(cfg Config) vgicdata.BridgeHook {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	meter := cfg.MeterProvider.Meter(instrumentationName)

	h := &otelHook{attrs: cfg.CustomAttributes}
	h.exports, _ = meter.Int64Counter("cdata.exports",
		metric.WithUnit("{array}"),
		metric.WithDescription("Number of arrays exported through the C data interface"),
	)
	h.imports, _ = meter.Int64Counter("cdata.imports",
		metric.WithUnit("{array}"),
		metric.WithDescription("Number of arrays imported through the C data interface"),
	)
	h.releases, _ = meter.Int64Counter("cdata.releases",
		metric.WithUnit("{array}"),
		metric.WithDescription("Number of exported arrays released by the consumer"),
	)
	h.alignmentCopies, _ = meter.Int64Counter("cdata.alignment_copies",
		metric.WithUnit("{buffer}"),
		metric.WithDescription("Number of imported buffers copied because the foreign pointer was misaligned"),
	)
	h.alignmentCopyBytes, _ = meter.Int64Counter("cdata.alignment_copy_bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes copied on the alignment-fallback path"),
	)
	return h
}

// otelHook implements vgicdata.BridgeHook with OpenTelemetry metrics.
type otelHook struct {
	attrs              []attribute.KeyValue
	exports            metric.Int64Counter
	imports            metric.Int64Counter
	releases           metric.Int64Counter
	alignmentCopies    metric.Int64Counter
	alignmentCopyBytes metric.Int64Counter
}

func (h *otelHook) typeAttrs(dtype arrow.DataType) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("cdata.type", dtype.String()),
	}, h.attrs...)
	return metric.WithAttributes(attrs...)
}

func (h *otelHook) OnExport(dtype arrow.DataType, length int64) {
	h.exports.Add(context.Background(), 1, h.typeAttrs(dtype))
}

func (h *otelHook) OnImport(dtype arrow.DataType, length int64) {
	h.imports.Add(context.Background(), 1, h.typeAttrs(dtype))
}

func (h *otelHook) OnAlignmentCopy(dtype arrow.DataType, bufferIndex int, byteLen int64) {
	opt := h.typeAttrs(dtype)
	h.alignmentCopies.Add(context.Background(), 1, opt)
	h.alignmentCopyBytes.Add(context.Background(), byteLen, opt)
}

func (h *otelHook) OnRelease(dtype arrow.DataType) {
	h.releases.Add(context.Background(), 1, h.typeAttrs(dtype))
}
