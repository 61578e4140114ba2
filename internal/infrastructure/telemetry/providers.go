package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported resource.
const ServiceVersion = "1.0.0"

// shutdownTimeout bounds the final flush of each provider.
const shutdownTimeout = 10 * time.Second

// sdkProvider is the lifecycle the trace, metric and log SDK providers share.
type sdkProvider interface {
	Shutdown(ctx context.Context) error
	ForceFlush(ctx context.Context) error
}

// lifecycle is embedded by each provider wrapper. A nil sdk means the signal
// is not exported and every method is a no-op.
type lifecycle struct {
	signal string
	sdk    sdkProvider
	logger *zap.Logger
}

// IsEnabled reports whether the signal is exported.
func (l *lifecycle) IsEnabled() bool {
	return l != nil && l.sdk != nil
}

// ForceFlush exports everything still buffered.
func (l *lifecycle) ForceFlush(ctx context.Context) error {
	if !l.IsEnabled() {
		return nil
	}
	return l.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider, giving up after shutdownTimeout.
func (l *lifecycle) Shutdown(ctx context.Context) error {
	if !l.IsEnabled() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := l.sdk.Shutdown(shutdownCtx); err != nil {
		l.logger.Error("Error shutting down "+l.signal+" provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown %s provider: %w", l.signal, err)
	}
	l.logger.Info("OpenTelemetry " + l.signal + " provider shutdown complete")
	return nil
}

// grpcOptions builds the OTLP/gRPC exporter options common to every signal.
func grpcOptions[O any](endpoint string, insecure bool, withEndpoint func(string) O, withInsecure func() O) []O {
	opts := []O{withEndpoint(endpoint)}
	if insecure {
		opts = append(opts, withInsecure())
	}
	return opts
}

// serviceResource describes this process to the collector.
func serviceResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
