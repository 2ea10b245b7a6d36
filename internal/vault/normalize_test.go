package vault

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"iiifvault/pkg/iiif"
)

// newTestTree builds the shared fixture: a root collection owning a
// sub-collection and a manifest, with the manifest curated as a member.
//
//	top (Collection, members: [m1])
//	├── sub (Collection)
//	│   └── m2 (Manifest)
//	│       └── c3 (Canvas)
//	└── m1 (Manifest)
//	    ├── c1 (Canvas)
//	    │   └── p1 (AnnotationPage)
//	    │       └── a1 (Annotation)
//	    ├── c2 (Canvas)
//	    └── r1 (Range → c1, c2)
func newTestTree() *iiif.Collection {
	a1 := &iiif.Annotation{
		Descriptive: iiif.Descriptive{ID: "a1"},
		Motivation:  "painting",
		Body:        map[string]any{"id": "https://example.org/img/1.jpg", "type": "Image"},
		Target:      "c1",
	}
	p1 := &iiif.AnnotationPage{
		Descriptive: iiif.Descriptive{ID: "p1"},
		Items:       []*iiif.Annotation{a1},
	}
	c1 := &iiif.Canvas{
		Descriptive: iiif.Descriptive{ID: "c1", Label: iiif.LanguageMap{"en": {"Page 1"}}},
		Width:       2400, Height: 3200,
		Items: []*iiif.AnnotationPage{p1},
	}
	c2 := &iiif.Canvas{
		Descriptive: iiif.Descriptive{ID: "c2", Label: iiif.LanguageMap{"en": {"Page 2"}}},
		Width:       2400, Height: 3200,
	}
	r1 := &iiif.Range{
		Descriptive: iiif.Descriptive{ID: "r1", Label: iiif.LanguageMap{"en": {"Chapter 1"}}},
		CanvasIDs:   []string{"c1", "c2"},
	}
	m1 := &iiif.Manifest{
		Descriptive: iiif.Descriptive{ID: "m1", Label: iiif.LanguageMap{"en": {"Shipping logs"}}},
		Items:       []*iiif.Canvas{c1, c2},
		Structures:  []*iiif.Range{r1},
	}
	c3 := &iiif.Canvas{Descriptive: iiif.Descriptive{ID: "c3"}}
	m2 := &iiif.Manifest{
		Descriptive: iiif.Descriptive{ID: "m2", Label: iiif.LanguageMap{"en": {"Ledgers"}}},
		Items:       []*iiif.Canvas{c3},
	}
	sub := &iiif.Collection{
		Descriptive: iiif.Descriptive{ID: "sub", Label: iiif.LanguageMap{"en": {"Sub"}}},
		Items:       []iiif.Entity{m2},
	}
	return &iiif.Collection{
		Descriptive: iiif.Descriptive{ID: "top", Label: iiif.LanguageMap{"en": {"Archive"}}},
		Members:     []string{"m1"},
		Items:       []iiif.Entity{sub, m1},
	}
}

func mustNormalize(t *testing.T, root iiif.Entity) *State {
	t.Helper()
	state, err := Normalize(root)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return state
}

func asJSON(t *testing.T, v any) any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestNormalizeIndexesEveryNode(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	if got := state.Len(); got != 10 {
		t.Fatalf("expected 10 entities, got %d", got)
	}
	if state.RootID() != "top" {
		t.Fatalf("root = %q, want top", state.RootID())
	}
	wantTypes := map[string]iiif.EntityType{
		"top": iiif.EntityCollection,
		"sub": iiif.EntityCollection,
		"m1":  iiif.EntityManifest,
		"m2":  iiif.EntityManifest,
		"c1":  iiif.EntityCanvas,
		"c2":  iiif.EntityCanvas,
		"c3":  iiif.EntityCanvas,
		"r1":  iiif.EntityRange,
		"p1":  iiif.EntityAnnotationPage,
		"a1":  iiif.EntityAnnotation,
	}
	for id, want := range wantTypes {
		entity := state.GetEntity(id)
		if entity == nil {
			t.Fatalf("entity %s not indexed", id)
		}
		if entity.Type() != want {
			t.Fatalf("entity %s indexed as %s, want %s", id, entity.Type(), want)
		}
	}
}

func TestNormalizeBuildsOrderedGraph(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	if got := state.ChildIDs("top"); !reflect.DeepEqual(got, []string{"sub", "m1"}) {
		t.Fatalf("top children = %v", got)
	}
	if got := state.ChildIDs("m1"); !reflect.DeepEqual(got, []string{"c1", "c2", "r1"}) {
		t.Fatalf("m1 children = %v", got)
	}
	if got := state.ParentID("c1"); got != "m1" {
		t.Fatalf("c1 parent = %q", got)
	}
	if got := state.Ancestors("a1"); !reflect.DeepEqual(got, []string{"p1", "c1", "m1", "top"}) {
		t.Fatalf("a1 ancestors = %v", got)
	}
	if got := state.Descendants("m1"); !reflect.DeepEqual(got, []string{"c1", "p1", "a1", "c2", "r1"}) {
		t.Fatalf("m1 descendants = %v", got)
	}
}

func TestNormalizeChildlessEntitiesHaveNoReferencesEntry(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	for _, id := range []string{"c2", "c3", "r1", "a1"} {
		if _, ok := state.references[id]; ok {
			t.Fatalf("childless %s has a references entry", id)
		}
	}
}

func TestNormalizePopulatesMembership(t *testing.T) {
	state := mustNormalize(t, newTestTree())

	if got := state.CollectionMembers("top"); !reflect.DeepEqual(got, []string{"m1"}) {
		t.Fatalf("top members = %v", got)
	}
	if got := state.CollectionsContaining("m1"); !reflect.DeepEqual(got, []string{"top"}) {
		t.Fatalf("m1 memberships = %v", got)
	}
	if state.IsOrphanManifest("m1") {
		t.Fatalf("m1 is a member of top, not an orphan")
	}
	// m2 is owned by sub but no collection lists it as a member.
	if !state.IsOrphanManifest("m2") {
		t.Fatalf("m2 has no memberships and should be an orphan")
	}
	if state.IsOrphanManifest("top") {
		t.Fatalf("collections are never orphan manifests")
	}
}

func TestNormalizeRejectsDuplicateIDs(t *testing.T) {
	root := newTestTree()
	dup := &iiif.Canvas{Descriptive: iiif.Descriptive{ID: "c1"}}
	m2 := root.Items[0].(*iiif.Collection).Items[0].(*iiif.Manifest)
	m2.Items = append(m2.Items, dup)

	_, err := Normalize(root)
	var dupErr DuplicateIDError
	if !errors.As(err, &dupErr) || dupErr.ID != "c1" {
		t.Fatalf("expected DuplicateIDError for c1, got %v", err)
	}
}

func TestNormalizeEmptyVault(t *testing.T) {
	state := mustNormalize(t, nil)
	if state.Len() != 0 || state.RootID() != "" {
		t.Fatalf("empty vault is not empty: %d entities, root %q", state.Len(), state.RootID())
	}
	tree, err := Denormalize(state)
	if err != nil || tree != nil {
		t.Fatalf("empty vault should denormalize to nil, got %v, %v", tree, err)
	}
}

func TestDenormalizeRoundTrip(t *testing.T) {
	original := newTestTree()
	state := mustNormalize(t, original)

	rebuilt, err := Denormalize(state)
	if err != nil {
		t.Fatalf("denormalize: %v", err)
	}
	if got, want := asJSON(t, rebuilt), asJSON(t, original); !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestDenormalizeRoundTripPreservesExtensions(t *testing.T) {
	original := newTestTree()
	original.Bag.Set("@context", "http://iiif.io/api/presentation/3/context.json")
	m1 := original.Items[1].(*iiif.Manifest)
	m1.Bag.Set("provider", []any{map[string]any{"id": "https://example.org", "type": "Agent"}})
	m1.Items[0].Bag.Set("customScanner", map[string]any{"model": "BC100"})

	state := mustNormalize(t, original)
	rebuilt, err := Denormalize(state)
	if err != nil {
		t.Fatalf("denormalize: %v", err)
	}
	if got, want := asJSON(t, rebuilt), asJSON(t, original); !reflect.DeepEqual(got, want) {
		t.Fatalf("extension round trip mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestDenormalizeIsDetached(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	rebuilt, err := Denormalize(state)
	if err != nil {
		t.Fatalf("denormalize: %v", err)
	}
	rebuilt.(*iiif.Collection).Label["en"][0] = "mutated"
	if got := state.GetEntity("top").(*iiif.Collection).Label["en"][0]; got != "Archive" {
		t.Fatalf("denormalized tree shares state with the snapshot: %q", got)
	}
}

func TestDenormalizeSubtree(t *testing.T) {
	state := mustNormalize(t, newTestTree())
	subtree, err := DenormalizeEntity(state, "m1")
	if err != nil {
		t.Fatalf("denormalize m1: %v", err)
	}
	manifest := subtree.(*iiif.Manifest)
	if len(manifest.Items) != 2 || len(manifest.Structures) != 1 {
		t.Fatalf("m1 subtree incomplete: %d canvases, %d ranges", len(manifest.Items), len(manifest.Structures))
	}
	if _, err := DenormalizeEntity(state, "ghost"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
