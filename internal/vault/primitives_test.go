package vault

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"iiifvault/pkg/iiif"
)

func TestAddEntityAppendsAndInserts(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	c4 := &iiif.Canvas{Descriptive: iiif.Descriptive{ID: "c4"}}
	next, err := AddEntity(state, c4, "m2", -1)
	if err != nil {
		t.Fatalf("add c4: %v", err)
	}
	if got := next.ChildIDs("m2"); !reflect.DeepEqual(got, []string{"c3", "c4"}) {
		t.Fatalf("m2 children after append = %v", got)
	}

	c0 := &iiif.Canvas{Descriptive: iiif.Descriptive{ID: "c0"}}
	next, err = AddEntity(next, c0, "m2", 0)
	if err != nil {
		t.Fatalf("add c0: %v", err)
	}
	if got := next.ChildIDs("m2"); !reflect.DeepEqual(got, []string{"c0", "c3", "c4"}) {
		t.Fatalf("m2 children after insert = %v", got)
	}
	if got := next.ParentID("c0"); got != "m2" {
		t.Fatalf("c0 parent = %q", got)
	}
}

func TestAddEntityLeavesInputStateUntouched(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	before := state.ChildIDs("m2")

	if _, err := AddEntity(state, &iiif.Canvas{Descriptive: iiif.Descriptive{ID: "c9"}}, "m2", -1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := state.ChildIDs("m2"); !reflect.DeepEqual(got, before) {
		t.Fatalf("input snapshot mutated: %v", got)
	}
	if state.Has("c9") {
		t.Fatalf("input snapshot gained c9")
	}
}

func TestAddEntityErrors(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	if next, err := AddEntity(state, &iiif.Canvas{Descriptive: iiif.Descriptive{ID: "cX"}}, "ghost", -1); !IsNotFound(err) || next != state {
		t.Fatalf("missing parent: state %p err %v", next, err)
	}
	var dup DuplicateIDError
	if _, err := AddEntity(state, &iiif.Canvas{Descriptive: iiif.Descriptive{ID: "c1"}}, "m2", -1); !errors.As(err, &dup) {
		t.Fatalf("duplicate id: %v", err)
	}
	var shape InvalidShapeError
	if _, err := AddEntity(state, &iiif.Manifest{Descriptive: iiif.Descriptive{ID: "mX"}}, "m1", -1); !errors.As(err, &shape) {
		t.Fatalf("manifest under manifest should be rejected, got %v", err)
	}
	if _, err := AddEntity(state, &iiif.Canvas{}, "m1", -1); !errors.As(err, &shape) {
		t.Fatalf("entity without id should be rejected, got %v", err)
	}
}

func TestAddEntitySubtree(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	canvas := &iiif.Canvas{
		Descriptive: iiif.Descriptive{ID: "c4"},
		Items: []*iiif.AnnotationPage{{
			Descriptive: iiif.Descriptive{ID: "p4"},
			Items:       []*iiif.Annotation{{Descriptive: iiif.Descriptive{ID: "a4"}}},
		}},
	}
	next, err := AddEntity(state, canvas, "m2", -1)
	if err != nil {
		t.Fatalf("add subtree: %v", err)
	}
	if !next.Has("p4") || !next.Has("a4") {
		t.Fatalf("subtree nodes not indexed")
	}
	if got := next.Ancestors("a4"); !reflect.DeepEqual(got, []string{"p4", "c4", "m2", "sub", "top"}) {
		t.Fatalf("a4 ancestors = %v", got)
	}
}

// Two additions diverging from one base snapshot must not see each other.
// Clones share slice storage with their source, so a membership append that
// grows a shared slice in place would leak into the sibling result.
func TestAddEntityMembershipDivergence(t *testing.T) {
	base := mustNormalize(t, newTestTree())
	var err error
	base, err = AddToCollection(base, "sub", "m1")
	if err != nil {
		t.Fatalf("add m1 to sub: %v", err)
	}
	base, err = AddEntity(base, &iiif.Collection{Descriptive: iiif.Descriptive{ID: "shelf"}}, "top", -1)
	if err != nil {
		t.Fatalf("add shelf: %v", err)
	}
	base, err = AddToCollection(base, "shelf", "m1")
	if err != nil {
		t.Fatalf("add m1 to shelf: %v", err)
	}

	first, err := AddEntity(base, &iiif.Collection{
		Descriptive: iiif.Descriptive{ID: "boxA"},
		Members:     []string{"m1"},
	}, "top", -1)
	if err != nil {
		t.Fatalf("add boxA: %v", err)
	}
	if got := first.CollectionsContaining("m1"); !reflect.DeepEqual(got, []string{"top", "sub", "shelf", "boxA"}) {
		t.Fatalf("m1 memberships after boxA = %v", got)
	}

	second, err := AddEntity(base, &iiif.Collection{
		Descriptive: iiif.Descriptive{ID: "boxB"},
		Members:     []string{"m1"},
	}, "top", -1)
	if err != nil {
		t.Fatalf("add boxB: %v", err)
	}
	if got := second.CollectionsContaining("m1"); !reflect.DeepEqual(got, []string{"top", "sub", "shelf", "boxB"}) {
		t.Fatalf("m1 memberships after boxB = %v", got)
	}

	// The first result and the base must read exactly as they did before
	// the second addition.
	if got := first.CollectionsContaining("m1"); !reflect.DeepEqual(got, []string{"top", "sub", "shelf", "boxA"}) {
		t.Fatalf("sibling addition rewrote a committed snapshot: %v", got)
	}
	if got := base.CollectionsContaining("m1"); !reflect.DeepEqual(got, []string{"top", "sub", "shelf"}) {
		t.Fatalf("base snapshot mutated: %v", got)
	}
}

// Removing c1 from m1 must drop the entity, its forward and reverse edges,
// and nothing else; p1 and a1 stay live but orphaned.
func TestRemoveEntityDoesNotCascade(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	next, err := RemoveEntity(state, "c1")
	if err != nil {
		t.Fatalf("remove c1: %v", err)
	}
	if next.Has("c1") {
		t.Fatalf("c1 still live")
	}
	if got := next.ChildIDs("m1"); !reflect.DeepEqual(got, []string{"c2", "r1"}) {
		t.Fatalf("m1 children = %v", got)
	}
	if !next.Has("p1") || !next.Has("a1") {
		t.Fatalf("descendants of c1 were cascaded away")
	}
	if got := next.ParentID("p1"); got != "" {
		t.Fatalf("p1 should be orphaned, parent = %q", got)
	}
	// a1 keeps its edge to p1; only the removed entity's edges go away.
	if got := next.ParentID("a1"); got != "p1" {
		t.Fatalf("a1 parent = %q", got)
	}

	// The prior snapshot still sees the old world.
	if !state.Has("c1") || state.ParentID("c1") != "m1" {
		t.Fatalf("input snapshot mutated by remove")
	}
}

func TestRemoveEntityCleansMembership(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	next, err := RemoveEntity(state, "m1")
	if err != nil {
		t.Fatalf("remove m1: %v", err)
	}
	if got := next.CollectionMembers("top"); got != nil {
		t.Fatalf("top still lists removed member: %v", got)
	}
	if got := next.CollectionsContaining("m1"); got != nil {
		t.Fatalf("m1 still claims memberships: %v", got)
	}

	// Removing the collection clears the same edges from the other side.
	next2, err := RemoveEntity(state, "top")
	if err != nil {
		t.Fatalf("remove top: %v", err)
	}
	if got := next2.CollectionsContaining("m1"); got != nil {
		t.Fatalf("membership survived collection removal: %v", got)
	}
	if next2.RootID() != "" {
		t.Fatalf("root survived its own removal: %q", next2.RootID())
	}
}

func TestUpdateEntityShallowMerge(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	label := iiif.LanguageMap{"en": {"Shipping logs, 1878"}}
	navDate := time.Date(1878, time.March, 2, 0, 0, 0, 0, time.UTC)
	next, err := UpdateEntity(state, "m1", Patch{Label: &label, NavDate: &navDate})
	if err != nil {
		t.Fatalf("update m1: %v", err)
	}

	updated := next.GetEntity("m1").(*iiif.Manifest)
	if updated.Label["en"][0] != "Shipping logs, 1878" {
		t.Fatalf("label not updated: %v", updated.Label)
	}
	if updated.NavDate == nil || !updated.NavDate.Equal(navDate) {
		t.Fatalf("nav date not updated: %v", updated.NavDate)
	}
	// Untouched fields survive the merge.
	if len(next.ChildIDs("m1")) != 3 {
		t.Fatalf("structure changed by update")
	}

	// Prior snapshot unchanged.
	if got := state.GetEntity("m1").(*iiif.Manifest).Label["en"][0]; got != "Shipping logs" {
		t.Fatalf("input snapshot label mutated: %q", got)
	}

	cleared, err := UpdateEntity(next, "m1", Patch{ClearNavDate: true})
	if err != nil {
		t.Fatalf("clear nav date: %v", err)
	}
	if cleared.GetEntity("m1").(*iiif.Manifest).NavDate != nil {
		t.Fatalf("nav date not cleared")
	}

	if _, err := UpdateEntity(state, "ghost", Patch{Label: &label}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateEntityExtensionMerge(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	next, err := UpdateEntity(state, "c1", Patch{Extensions: map[string]any{
		"customScanner": map[string]any{"model": "BC100"},
	}})
	if err != nil {
		t.Fatalf("set extension: %v", err)
	}
	canvas := next.GetEntity("c1").(*iiif.Canvas)
	if _, ok := canvas.Bag.Get("customScanner"); !ok {
		t.Fatalf("extension not stored")
	}

	removed, err := UpdateEntity(next, "c1", Patch{Extensions: map[string]any{"customScanner": nil}})
	if err != nil {
		t.Fatalf("remove extension: %v", err)
	}
	if _, ok := removed.GetEntity("c1").(*iiif.Canvas).Bag.Get("customScanner"); ok {
		t.Fatalf("extension not removed")
	}
}

// Membership changes leave the ownership graph alone and clean up without
// residue when undone by the inverse operation.
func TestCollectionMembershipAddRemove(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	next, err := AddToCollection(state, "sub", "m1")
	if err != nil {
		t.Fatalf("add to collection: %v", err)
	}
	if got := next.CollectionMembers("sub"); !reflect.DeepEqual(got, []string{"m1"}) {
		t.Fatalf("sub members = %v", got)
	}
	if got := next.CollectionsContaining("m1"); !reflect.DeepEqual(got, []string{"top", "sub"}) {
		t.Fatalf("m1 memberships = %v", got)
	}
	if got := next.ParentID("m1"); got != "top" {
		t.Fatalf("ownership changed by membership: parent = %q", got)
	}

	// Idempotent add returns the same snapshot.
	again, err := AddToCollection(next, "sub", "m1")
	if err != nil || again != next {
		t.Fatalf("duplicate membership add: state %p err %v", again, err)
	}

	back, err := RemoveFromCollection(next, "sub", "m1")
	if err != nil {
		t.Fatalf("remove from collection: %v", err)
	}
	if got := back.CollectionMembers("sub"); got != nil {
		t.Fatalf("membership residue in forward table: %v", got)
	}
	if got := back.CollectionsContaining("m1"); !reflect.DeepEqual(got, []string{"top"}) {
		t.Fatalf("membership residue in reverse table: %v", got)
	}

	// Removing an absent membership is a no-op.
	same, err := RemoveFromCollection(back, "sub", "m1")
	if err != nil || same != back {
		t.Fatalf("absent membership remove: state %p err %v", same, err)
	}
}

func TestAddToCollectionErrors(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	if _, err := AddToCollection(state, "ghost", "m1"); !IsNotFound(err) {
		t.Fatalf("missing collection: %v", err)
	}
	if _, err := AddToCollection(state, "top", "ghost"); !IsNotFound(err) {
		t.Fatalf("missing member: %v", err)
	}
	var shape InvalidShapeError
	if _, err := AddToCollection(state, "m1", "c1"); !errors.As(err, &shape) {
		t.Fatalf("manifest as collection: %v", err)
	}
}

func TestReorderChildren(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	next, err := ReorderChildren(state, "m1", []string{"c2", "c1", "r1"})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := next.ChildIDs("m1"); !reflect.DeepEqual(got, []string{"c2", "c1", "r1"}) {
		t.Fatalf("m1 children = %v", got)
	}
	if got := state.ChildIDs("m1"); !reflect.DeepEqual(got, []string{"c1", "c2", "r1"}) {
		t.Fatalf("input snapshot reordered: %v", got)
	}

	var shape InvalidShapeError
	if _, err := ReorderChildren(state, "m1", []string{"c1", "c2"}); !errors.As(err, &shape) {
		t.Fatalf("short order accepted: %v", err)
	}
	if _, err := ReorderChildren(state, "m1", []string{"c1", "c1", "r1"}); !errors.As(err, &shape) {
		t.Fatalf("repeated id accepted: %v", err)
	}
	if _, err := ReorderChildren(state, "m1", []string{"c1", "c3", "r1"}); !errors.As(err, &shape) {
		t.Fatalf("foreign child accepted: %v", err)
	}
}

func TestMoveItem(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	next, err := MoveItem(state, "c1", "m2", 0)
	if err != nil {
		t.Fatalf("move c1: %v", err)
	}
	if got := next.ChildIDs("m1"); !reflect.DeepEqual(got, []string{"c2", "r1"}) {
		t.Fatalf("m1 children = %v", got)
	}
	if got := next.ChildIDs("m2"); !reflect.DeepEqual(got, []string{"c1", "c3"}) {
		t.Fatalf("m2 children = %v", got)
	}
	// The subtree under c1 travels with it.
	if got := next.Ancestors("a1"); !reflect.DeepEqual(got, []string{"p1", "c1", "m2", "sub", "top"}) {
		t.Fatalf("a1 ancestors = %v", got)
	}
}

func TestMoveItemWithinSameParent(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	next, err := MoveItem(state, "c2", "m1", 0)
	if err != nil {
		t.Fatalf("move c2: %v", err)
	}
	if got := next.ChildIDs("m1"); !reflect.DeepEqual(got, []string{"c2", "c1", "r1"}) {
		t.Fatalf("m1 children = %v", got)
	}
}

func TestMoveItemRejectsCycles(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	var shape InvalidShapeError
	if _, err := MoveItem(state, "sub", "sub", 0); !errors.As(err, &shape) {
		t.Fatalf("self move accepted: %v", err)
	}
	// Moving top under its own descendant would orphan the whole tree.
	if _, err := MoveItem(state, "top", "sub", 0); !errors.As(err, &shape) {
		t.Fatalf("root move accepted: %v", err)
	}
	if _, err := MoveItem(state, "c1", "m1", 0); err != nil {
		t.Fatalf("legal same-parent move rejected: %v", err)
	}
	if _, err := MoveItem(state, "r1", "m2", -1); err != nil {
		t.Fatalf("range move rejected: %v", err)
	}
	if _, err := MoveItem(state, "p1", "m1", 0); !errors.As(err, &shape) {
		t.Fatalf("page under manifest accepted: %v", err)
	}
}
