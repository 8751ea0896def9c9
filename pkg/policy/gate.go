package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"
)

// Gate decides whether a route's guardrail policy is authorized to run for
// the stream about to start. It is consulted exactly once, before
// buffering begins; a false decision makes the stream behave as if no
// guardrails were configured (straight pass-through), not as a second
// rejection path — denial must never become a new way to drop bytes.
type Gate interface {
	Evaluate(ctx context.Context, principal, route string) bool
}

// CedarGate evaluates route authorization with a loaded Cedar policy set,
// generalizing the policy-decision-point pattern used for agent-to-agent
// authorization into per-route guardrail gating.
type CedarGate struct {
	policySet *cedar.PolicySet
}

// NewCedarGate loads a Cedar policy set from policyPath.
func NewCedarGate(policyPath string) (*CedarGate, error) {
	policyBytes, err := os.ReadFile(policyPath)
	if err != nil {
		return nil, fmt.Errorf("policy: reading cedar policy file: %w", err)
	}
	policySet, err := cedar.NewPolicySetFromBytes(policyPath, policyBytes)
	if err != nil {
		return nil, fmt.Errorf("policy: parsing cedar policies: %w", err)
	}
	return &CedarGate{policySet: policySet}, nil
}

// Evaluate reports whether principal may run the guardrail policy attached
// to route.
func (g *CedarGate) Evaluate(ctx context.Context, principal, route string) bool {
	principalUID := types.NewEntityUID(types.EntityType("AIExtProc::Principal"), types.String(principal))
	actionUID := types.NewEntityUID(types.EntityType("AIExtProc::Action"), types.String("RunGuardrails"))
	routeUID := types.NewEntityUID(types.EntityType("AIExtProc::Route"), types.String(route))

	entities := types.EntityMap{
		principalUID: {UID: principalUID, Attributes: types.Record{}},
		actionUID:    {UID: actionUID, Attributes: types.Record{}},
		routeUID:     {UID: routeUID, Attributes: types.Record{}},
	}
	req := types.Request{
		Principal: principalUID,
		Action:    actionUID,
		Resource:  routeUID,
	}

	decision, _ := cedar.Authorize(g.policySet, entities, req)
	return decision == cedar.Allow
}

// AlwaysAllow is a Gate that never denies, used when no Cedar policy file
// is configured — guardrails then run purely under the route's
// PromptGuardPolicy, unaffected by the gate.
type AlwaysAllow struct{}

func (AlwaysAllow) Evaluate(ctx context.Context, principal, route string) bool { return true }
