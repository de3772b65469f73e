package resolver

import (
	"context"

	"ignews-service/internal/auth"
	"ignews-service/internal/logger"
	"ignews-service/internal/users"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision is what the sign-in flow does with a resolved identity.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

var signinDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ignews",
	Subsystem: "auth",
	Name:      "signin_decisions_total",
	Help:      "Sign-in decisions by provider",
}, []string{"provider", "decision"})

// Decide collapses a resolve outcome into a decision. Created and Fetched
// both allow; any error denies.
func Decide(res users.Result, err error) Decision {
	if err != nil {
		return Denied
	}
	if res.Outcome != users.Created && res.Outcome != users.Fetched {
		return Denied
	}
	return Allowed
}

// Gate runs the resolver for a completed OAuth login and reports whether
// the session may proceed. Failure details stay in the logs.
type Gate struct {
	resolver Resolver
}

func NewGate(r Resolver) *Gate {
	return &Gate{resolver: r}
}

func (g *Gate) SignIn(ctx context.Context, identity *auth.Identity) bool {
	res, err := g.resolver.Resolve(ctx, identity)
	decision := Decide(res, err)

	provider := ""
	if identity != nil {
		provider = identity.Provider
	}
	signinDecisions.WithLabelValues(provider, decision.String()).Inc()

	if err != nil {
		logger.Error("sign-in denied", map[string]any{
			"provider":  provider,
			"transient": users.IsTransient(err),
			"error":     err,
		})
		return false
	}

	logger.Info("sign-in allowed", map[string]any{
		"provider": provider,
		"user_id":  res.Record.ID,
		"outcome":  res.Outcome.String(),
	})

	return decision == Allowed
}
