package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics holds metric instruments for the session lifecycle.
// Initialize once at server startup and reuse throughout the application lifecycle.
type AuthMetrics struct {
	LoginCounter      metric.Int64Counter // Completed logins by source
	LoginFailures     metric.Int64Counter // Failed login attempts
	RenewalCounter    metric.Int64Counter // Silent renewal attempts
	RenewalFailures   metric.Int64Counter // Silent renewal failures (session revoked)
	DegradedResolves  metric.Int64Counter // Resolutions served from claims only
	SessionsSignedOut metric.Int64Counter // Sessions ended, any reason
}

// NewAuthMetrics creates metric instruments for session telemetry.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("consoleapi/auth")

	loginCounter, err := meter.Int64Counter(
		"auth.login.count",
		metric.WithDescription("Total number of completed logins"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, err
	}

	loginFailures, err := meter.Int64Counter(
		"auth.login.failure.count",
		metric.WithDescription("Total number of failed login attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	renewalCounter, err := meter.Int64Counter(
		"auth.renewal.count",
		metric.WithDescription("Total number of silent renewal attempts"),
		metric.WithUnit("{renewal}"),
	)
	if err != nil {
		return nil, err
	}

	renewalFailures, err := meter.Int64Counter(
		"auth.renewal.failure.count",
		metric.WithDescription("Total number of silent renewal failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	degradedResolves, err := meter.Int64Counter(
		"auth.resolve.degraded.count",
		metric.WithDescription("Total number of user resolutions served from claims only"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, err
	}

	sessionsSignedOut, err := meter.Int64Counter(
		"auth.signout.count",
		metric.WithDescription("Total number of sessions ended"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		LoginCounter:      loginCounter,
		LoginFailures:     loginFailures,
		RenewalCounter:    renewalCounter,
		RenewalFailures:   renewalFailures,
		DegradedResolves:  degradedResolves,
		SessionsSignedOut: sessionsSignedOut,
	}, nil
}

// RecordLogin records a login attempt by source ("provider" or "fallback").
func (m *AuthMetrics) RecordLogin(ctx context.Context, source string, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("auth.source", source),
		attribute.Bool("auth.success", success),
	)
	if success {
		m.LoginCounter.Add(ctx, 1, attrs)
	} else {
		m.LoginFailures.Add(ctx, 1, attrs)
	}
}

// RecordRenewal records a silent renewal attempt.
func (m *AuthMetrics) RecordRenewal(ctx context.Context, success bool) {
	attrs := metric.WithAttributes(attribute.Bool("auth.success", success))
	m.RenewalCounter.Add(ctx, 1, attrs)
	if !success {
		m.RenewalFailures.Add(ctx, 1, attrs)
	}
}

// RecordDegradedResolve records a resolution that fell back to claims.
func (m *AuthMetrics) RecordDegradedResolve(ctx context.Context) {
	m.DegradedResolves.Add(ctx, 1)
}

// RecordSignOut records an ended session by source.
func (m *AuthMetrics) RecordSignOut(ctx context.Context, source string) {
	m.SessionsSignedOut.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.source", source),
	))
}
