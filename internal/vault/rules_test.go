package vault

import (
	"context"
	"testing"

	"iiifvault/pkg/iiif"
)

func violationsOf(t *testing.T, rule Rule, state *State) []Violation {
	t.Helper()
	res, err := rule.Evaluate(context.Background(), state)
	if err != nil {
		t.Fatalf("%s: %v", rule.Name(), err)
	}
	return res.Violations
}

func TestDefaultRulesAcceptHealthyState(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	res, err := DefaultRulesEngine().Evaluate(context.Background(), state)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.HasBlocking() {
		t.Fatalf("healthy state flagged: %+v", res.Violations)
	}
}

func TestReferenceSymmetryRuleDetectsBrokenEdges(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	// Forward edge without the matching reverse edge.
	corrupt := state.clone()
	delete(corrupt.reverseRefs, "c1")
	if v := violationsOf(t, ReferenceSymmetryRule(), corrupt); len(v) == 0 {
		t.Fatalf("missing reverse edge not detected")
	}

	// Reverse edge whose parent does not list the child.
	corrupt = state.clone()
	corrupt.reverseRefs["c3"] = "m1"
	corrupt.setChildren("m2", nil)
	if v := violationsOf(t, ReferenceSymmetryRule(), corrupt); len(v) == 0 {
		t.Fatalf("unlisted reverse edge not detected")
	}

	// Child list naming a dead entity.
	corrupt = state.clone()
	corrupt.deleteEntity("c2")
	if v := violationsOf(t, ReferenceSymmetryRule(), corrupt); len(v) == 0 {
		t.Fatalf("dead child not detected")
	}
}

func TestSingleOwnerRuleDetectsDoubleClaim(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	corrupt := state.clone()
	corrupt.references["m2"] = []string{"c3", "c1"}
	if v := violationsOf(t, SingleOwnerRule(), corrupt); len(v) == 0 {
		t.Fatalf("double ownership not detected")
	}
}

func TestAcyclicOwnershipRuleDetectsCycle(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	corrupt := state.clone()
	corrupt.reverseRefs["top"] = "sub"
	if v := violationsOf(t, AcyclicOwnershipRule(), corrupt); len(v) == 0 {
		t.Fatalf("ownership cycle not detected")
	}
}

func TestMembershipSymmetryRuleDetectsOneSidedEdges(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	corrupt := state.clone()
	delete(corrupt.memberOfCollections, "m1")
	if v := violationsOf(t, MembershipSymmetryRule(), corrupt); len(v) == 0 {
		t.Fatalf("missing reverse membership not detected")
	}

	corrupt = state.clone()
	corrupt.memberOfCollections["m2"] = []string{"top"}
	if v := violationsOf(t, MembershipSymmetryRule(), corrupt); len(v) == 0 {
		t.Fatalf("missing forward membership not detected")
	}
}

func TestIndexConsistencyRuleDetectsDrift(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	corrupt := state.clone()
	delete(corrupt.entities[iiif.EntityCanvas], "c1")
	if v := violationsOf(t, IndexConsistencyRule(), corrupt); len(v) == 0 {
		t.Fatalf("bucket drift not detected")
	}

	corrupt = state.clone()
	corrupt.rootID = "ghost"
	if v := violationsOf(t, IndexConsistencyRule(), corrupt); len(v) == 0 {
		t.Fatalf("dead root not detected")
	}
}

func TestRangeTargetsRuleWarnsOnStaleTargets(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	next, err := RemoveEntity(state, "c1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	v := violationsOf(t, RangeTargetsRule(), next)
	if len(v) != 1 {
		t.Fatalf("violations = %+v", v)
	}
	if v[0].Severity != SeverityWarn {
		t.Fatalf("stale range target should warn, got %s", v[0].Severity)
	}
}
