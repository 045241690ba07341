// Package telemetry builds the OTLP MeterProvider used by the authcenter
// binary to ship engine metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// DefaultInterval is the export period of the periodic reader.
const DefaultInterval = 10 * time.Second

// Provider holds the MeterProvider and its shutdown function.
type Provider struct {
	MeterProvider *metric.MeterProvider
	Shutdown      func(context.Context) error
	// Exporting is false when no endpoint was configured.
	Exporting bool
}

// Options configure NewProvider.
type Options struct {
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	// Insecure forces a plaintext connection even for https endpoints.
	Insecure bool
	Interval time.Duration
}

// NewProvider returns a MeterProvider exporting over OTLP gRPC to
// opts.Endpoint. An empty endpoint yields a provider with no reader.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return &Provider{
			MeterProvider: metric.NewMeterProvider(),
			Shutdown:      func(context.Context) error { return nil },
		}, nil
	}
	if strings.TrimSpace(opts.ServiceName) == "" {
		return nil, errors.New("telemetry: service name required")
	}

	target, insecure, err := grpcTarget(endpoint)
	if err != nil {
		return nil, err
	}
	insecure = insecure || opts.Insecure

	attrs := []resource.Option{
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceNameKey.String(opts.ServiceName)),
	}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersionKey.String(opts.ServiceVersion)))
	}
	own, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), own)
	if err != nil {
		return nil, err
	}

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(interval))),
	)

	return &Provider{
		MeterProvider: mp,
		Shutdown:      mp.Shutdown,
		Exporting:     true,
	}, nil
}

// grpcTarget reduces endpoint to host:port. Non-https schemes are insecure.
func grpcTarget(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("telemetry: invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("telemetry: invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme != "https", nil
}
