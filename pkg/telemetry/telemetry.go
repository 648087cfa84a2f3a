// Package telemetry 初始化 OpenTelemetry：OTLP gRPC 导出 metrics 与 traces，
// 导出地址等由 OTEL_EXPORTER_OTLP_* 环境变量控制。
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// ShutdownFunc 进程退出前调用，flush 并关闭所有 provider
type ShutdownFunc func(ctx context.Context) error

func newResource(serviceName string) (*sdkresource.Resource, error) {
	return sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func initMeterProvider(ctx context.Context, res *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

func initTracerProvider(ctx context.Context, res *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Init 注册全局 MeterProvider / TracerProvider，返回的 MeterProvider 供 metrics.OtelMetrics 使用
func Init(ctx context.Context, serviceName string) (*sdkmetric.MeterProvider, ShutdownFunc, error) {
	res, err := newResource(serviceName)
	if err != nil {
		return nil, nil, err
	}

	mp, err := initMeterProvider(ctx, res)
	if err != nil {
		return nil, nil, err
	}

	tp, err := initTracerProvider(ctx, res)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	return mp, func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}
