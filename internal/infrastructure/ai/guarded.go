// Package ai holds the model provider adapters and the wrappers shared by them
package ai

import (
	"context"
	stderrors "errors"

	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/ecofridge/server/pkg/healthcheck"
	"go.uber.org/zap"
)

// GuardedProvider fails fast with an upstream error while the provider's
// circuit is open. Errors caused by the request itself do not count as
// failures.
type GuardedProvider struct {
	provider outbound.ModelProvider
	breaker  *healthcheck.CircuitBreaker
}

// NewGuardedProvider wraps provider with a circuit breaker
func NewGuardedProvider(provider outbound.ModelProvider, cfg healthcheck.CircuitBreakerConfig, logger *zap.Logger) *GuardedProvider {
	log := logger.Named("breaker")
	cfg.OnStateChange = func(name string, from, to healthcheck.CircuitBreakerState) {
		log.Warn("Model provider circuit changed state",
			zap.String("provider", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &GuardedProvider{
		provider: provider,
		breaker:  healthcheck.NewCircuitBreaker(provider.Name(), cfg),
	}
}

// Name returns the wrapped provider's name
func (g *GuardedProvider) Name() string {
	return g.provider.Name()
}

// Generate forwards to the wrapped provider unless the circuit is open
func (g *GuardedProvider) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	var resp *outbound.ModelResponse
	err := g.breaker.Execute(func() error {
		var err error
		resp, err = g.provider.Generate(ctx, req)
		return err
	}, isProviderFailure)

	if stderrors.Is(err, healthcheck.ErrCircuitOpen) {
		return nil, apperrors.NewUpstreamError(g.provider.Name(), err).WithMetadata("circuit", "open")
	}
	return resp, err
}

// Checker reports the circuit state, plus reachability when the provider
// can be pinged.
func (g *GuardedProvider) Checker() healthcheck.Checker {
	pinger, ok := g.provider.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return g.breaker.Checker()
	}
	circuit := g.breaker.Checker()
	return healthcheck.CheckerFunc(func(ctx context.Context) healthcheck.Check {
		check := circuit.Check(ctx)
		if err := pinger.HealthCheck(ctx); err != nil {
			check.Status = healthcheck.StatusUnhealthy
			check.Message = err.Error()
		}
		return check
	})
}

func isProviderFailure(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	switch apperrors.GetCode(err) {
	case apperrors.CodeBadRequest, apperrors.CodeValidationFailed, apperrors.CodeParse:
		return false
	}
	return true
}
