package vault

import (
	"context"
	"fmt"

	"iiifvault/pkg/iiif"
)

// Severity classifies rule violations.
type Severity string

const (
	// SeverityBlock marks violations that must reject the snapshot.
	SeverityBlock Severity = "block"
	// SeverityWarn marks violations surfaced without rejecting.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Rule inspects a snapshot for structural invariant violations.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, state *State) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// DefaultRulesEngine returns an engine loaded with every structural rule.
func DefaultRulesEngine() *RulesEngine {
	e := NewRulesEngine()
	e.Register(ReferenceSymmetryRule())
	e.Register(SingleOwnerRule())
	e.Register(AcyclicOwnershipRule())
	e.Register(MembershipSymmetryRule())
	e.Register(IndexConsistencyRule())
	e.Register(RangeTargetsRule())
	return e
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, state *State) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, state)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

func blocking(rule, entityID, message string) Violation {
	return Violation{Rule: rule, Severity: SeverityBlock, Message: message, EntityID: entityID}
}

// ReferenceSymmetryRule checks that every forward ownership edge has a
// matching reverse edge and vice versa, and that edges name live entities.
func ReferenceSymmetryRule() Rule { return referenceSymmetryRule{} }

type referenceSymmetryRule struct{}

func (referenceSymmetryRule) Name() string { return "reference_symmetry" }

func (referenceSymmetryRule) Evaluate(_ context.Context, state *State) (Result, error) {
	res := Result{}
	for parentID, children := range state.references {
		if !state.Has(parentID) {
			res.Violations = append(res.Violations, blocking("reference_symmetry", parentID,
				fmt.Sprintf("references key %s names a dead entity", parentID)))
		}
		if len(children) == 0 {
			res.Violations = append(res.Violations, blocking("reference_symmetry", parentID,
				fmt.Sprintf("references key %s holds an empty child list", parentID)))
		}
		for _, childID := range children {
			if !state.Has(childID) {
				res.Violations = append(res.Violations, blocking("reference_symmetry", childID,
					fmt.Sprintf("%s lists dead child %s", parentID, childID)))
				continue
			}
			if got := state.reverseRefs[childID]; got != parentID {
				res.Violations = append(res.Violations, blocking("reference_symmetry", childID,
					fmt.Sprintf("%s lists child %s but its reverse edge names %q", parentID, childID, got)))
			}
		}
	}
	for childID, parentID := range state.reverseRefs {
		if !containsID(state.references[parentID], childID) {
			res.Violations = append(res.Violations, blocking("reference_symmetry", childID,
				fmt.Sprintf("%s claims parent %s which does not list it", childID, parentID)))
		}
	}
	return res, nil
}

// SingleOwnerRule checks that no entity is listed as a child of more than one
// parent, and that child lists carry no duplicates.
func SingleOwnerRule() Rule { return singleOwnerRule{} }

type singleOwnerRule struct{}

func (singleOwnerRule) Name() string { return "single_owner" }

func (singleOwnerRule) Evaluate(_ context.Context, state *State) (Result, error) {
	res := Result{}
	owners := make(map[string]string, len(state.reverseRefs))
	for parentID, children := range state.references {
		for _, childID := range children {
			if prior, claimed := owners[childID]; claimed {
				res.Violations = append(res.Violations, blocking("single_owner", childID,
					fmt.Sprintf("%s is owned by both %s and %s", childID, prior, parentID)))
				continue
			}
			owners[childID] = parentID
		}
	}
	return res, nil
}

// AcyclicOwnershipRule checks that following parent edges always terminates.
func AcyclicOwnershipRule() Rule { return acyclicOwnershipRule{} }

type acyclicOwnershipRule struct{}

func (acyclicOwnershipRule) Name() string { return "acyclic_ownership" }

func (acyclicOwnershipRule) Evaluate(_ context.Context, state *State) (Result, error) {
	res := Result{}
	for start := range state.reverseRefs {
		slow, fast := start, start
		for {
			fast = state.reverseRefs[fast]
			if fast == "" {
				break
			}
			fast = state.reverseRefs[fast]
			if fast == "" {
				break
			}
			slow = state.reverseRefs[slow]
			if slow == fast {
				res.Violations = append(res.Violations, blocking("acyclic_ownership", start,
					fmt.Sprintf("ownership chain from %s never reaches a root", start)))
				break
			}
		}
	}
	return res, nil
}

// MembershipSymmetryRule checks that the two membership side tables mirror
// each other exactly.
func MembershipSymmetryRule() Rule { return membershipSymmetryRule{} }

type membershipSymmetryRule struct{}

func (membershipSymmetryRule) Name() string { return "membership_symmetry" }

func (membershipSymmetryRule) Evaluate(_ context.Context, state *State) (Result, error) {
	res := Result{}
	for collectionID, members := range state.collectionMembers {
		for _, memberID := range members {
			if !containsID(state.memberOfCollections[memberID], collectionID) {
				res.Violations = append(res.Violations, blocking("membership_symmetry", memberID,
					fmt.Sprintf("%s lists member %s without a reverse entry", collectionID, memberID)))
			}
		}
	}
	for memberID, collections := range state.memberOfCollections {
		for _, collectionID := range collections {
			if !containsID(state.collectionMembers[collectionID], memberID) {
				res.Violations = append(res.Violations, blocking("membership_symmetry", memberID,
					fmt.Sprintf("%s claims membership in %s without a forward entry", memberID, collectionID)))
			}
		}
	}
	return res, nil
}

// IndexConsistencyRule checks that the type index and the per-type buckets
// describe the same population and that stored records agree with their keys.
func IndexConsistencyRule() Rule { return indexConsistencyRule{} }

type indexConsistencyRule struct{}

func (indexConsistencyRule) Name() string { return "index_consistency" }

func (indexConsistencyRule) Evaluate(_ context.Context, state *State) (Result, error) {
	res := Result{}
	for id, t := range state.typeIndex {
		entity, ok := state.entities[t][id]
		if !ok {
			res.Violations = append(res.Violations, blocking("index_consistency", id,
				fmt.Sprintf("%s indexed as %s but missing from its bucket", id, t)))
			continue
		}
		if entity.EntityID() != id || entity.Type() != t {
			res.Violations = append(res.Violations, blocking("index_consistency", id,
				fmt.Sprintf("record under key %s reports id %s type %s", id, entity.EntityID(), entity.Type())))
		}
	}
	for t, bucket := range state.entities {
		for id := range bucket {
			if state.typeIndex[id] != t {
				res.Violations = append(res.Violations, blocking("index_consistency", id,
					fmt.Sprintf("%s stored in %s bucket without a matching index entry", id, t)))
			}
		}
	}
	if state.rootID != "" && !state.Has(state.rootID) {
		res.Violations = append(res.Violations, blocking("index_consistency", state.rootID,
			fmt.Sprintf("root %s is not a live entity", state.rootID)))
	}
	return res, nil
}

// RangeTargetsRule warns when a range references canvases that are dead or
// owned by a different manifest. Range targets are references, not ownership,
// so stale ids degrade navigation but do not corrupt the graph.
func RangeTargetsRule() Rule { return rangeTargetsRule{} }

type rangeTargetsRule struct{}

func (rangeTargetsRule) Name() string { return "range_targets" }

func (rangeTargetsRule) Evaluate(_ context.Context, state *State) (Result, error) {
	res := Result{}
	for id, entity := range state.entities[iiif.EntityRange] {
		rng := entity.(*iiif.Range)
		manifestID := state.reverseRefs[id]
		for _, canvasID := range rng.CanvasIDs {
			if !state.Has(canvasID) {
				res.Violations = append(res.Violations, Violation{
					Rule: "range_targets", Severity: SeverityWarn, EntityID: id,
					Message: fmt.Sprintf("range %s targets dead canvas %s", id, canvasID),
				})
				continue
			}
			if manifestID != "" && state.reverseRefs[canvasID] != manifestID {
				res.Violations = append(res.Violations, Violation{
					Rule: "range_targets", Severity: SeverityWarn, EntityID: id,
					Message: fmt.Sprintf("range %s targets canvas %s outside manifest %s", id, canvasID, manifestID),
				})
			}
		}
	}
	return res, nil
}
