package vault

import (
	"context"
	"fmt"

	"iiifvault/pkg/iiif"
)

// Snapshot is the serializable form of a State: typed entity buckets, the
// forward ownership edges, the membership lists and the root id. Reverse
// edges are derived and rebuilt on load. Trash contents are session-local and
// not persisted.
type Snapshot struct {
	Collections     map[string]*iiif.Collection     `json:"collections,omitempty"`
	Manifests       map[string]*iiif.Manifest       `json:"manifests,omitempty"`
	Canvases        map[string]*iiif.Canvas         `json:"canvases,omitempty"`
	Ranges          map[string]*iiif.Range          `json:"ranges,omitempty"`
	AnnotationPages map[string]*iiif.AnnotationPage `json:"annotation_pages,omitempty"`
	Annotations     map[string]*iiif.Annotation     `json:"annotations,omitempty"`
	References      map[string][]string             `json:"references,omitempty"`
	Members         map[string][]string             `json:"members,omitempty"`
	RootID          string                          `json:"root_id,omitempty"`
}

// SnapshotStore persists vault snapshots. Implementations live under
// internal/infra/persistence; sessions treat the store as optional.
type SnapshotStore interface {
	// Load returns the stored snapshot, reporting false when none exists yet.
	Load(ctx context.Context) (Snapshot, bool, error)
	// Persist replaces the stored snapshot.
	Persist(ctx context.Context, snapshot Snapshot) error
	// Close releases underlying resources.
	Close() error
}

// ExportSnapshot converts a snapshot of the vault into its serializable form.
// Entities are detached deep copies; the result shares nothing with the state.
func ExportSnapshot(s *State) Snapshot {
	snap := Snapshot{
		Collections:     make(map[string]*iiif.Collection, len(s.entities[iiif.EntityCollection])),
		Manifests:       make(map[string]*iiif.Manifest, len(s.entities[iiif.EntityManifest])),
		Canvases:        make(map[string]*iiif.Canvas, len(s.entities[iiif.EntityCanvas])),
		Ranges:          make(map[string]*iiif.Range, len(s.entities[iiif.EntityRange])),
		AnnotationPages: make(map[string]*iiif.AnnotationPage, len(s.entities[iiif.EntityAnnotationPage])),
		Annotations:     make(map[string]*iiif.Annotation, len(s.entities[iiif.EntityAnnotation])),
		References:      make(map[string][]string, len(s.references)),
		Members:         make(map[string][]string, len(s.collectionMembers)),
		RootID:          s.rootID,
	}
	for id, entity := range s.entities[iiif.EntityCollection] {
		snap.Collections[id] = entity.CloneDetached().(*iiif.Collection)
	}
	for id, entity := range s.entities[iiif.EntityManifest] {
		snap.Manifests[id] = entity.CloneDetached().(*iiif.Manifest)
	}
	for id, entity := range s.entities[iiif.EntityCanvas] {
		snap.Canvases[id] = entity.CloneDetached().(*iiif.Canvas)
	}
	for id, entity := range s.entities[iiif.EntityRange] {
		snap.Ranges[id] = entity.CloneDetached().(*iiif.Range)
	}
	for id, entity := range s.entities[iiif.EntityAnnotationPage] {
		snap.AnnotationPages[id] = entity.CloneDetached().(*iiif.AnnotationPage)
	}
	for id, entity := range s.entities[iiif.EntityAnnotation] {
		snap.Annotations[id] = entity.CloneDetached().(*iiif.Annotation)
	}
	for id, children := range s.references {
		snap.References[id] = append([]string(nil), children...)
	}
	for id, members := range s.collectionMembers {
		snap.Members[id] = append([]string(nil), members...)
	}
	return snap
}

// ImportSnapshot rebuilds a State from its serializable form, recomputing the
// derived reverse edges and membership index.
func ImportSnapshot(snap Snapshot) (*State, error) {
	s := NewState()
	place := func(entity iiif.Entity, id string) error {
		if entity.EntityID() != id {
			return fmt.Errorf("vault: snapshot key %s holds entity %s", id, entity.EntityID())
		}
		if s.Has(id) {
			return DuplicateIDError{ID: id}
		}
		s.setEntity(entity.CloneDetached())
		return nil
	}
	for id, entity := range snap.Collections {
		if err := place(entity, id); err != nil {
			return nil, err
		}
	}
	for id, entity := range snap.Manifests {
		if err := place(entity, id); err != nil {
			return nil, err
		}
	}
	for id, entity := range snap.Canvases {
		if err := place(entity, id); err != nil {
			return nil, err
		}
	}
	for id, entity := range snap.Ranges {
		if err := place(entity, id); err != nil {
			return nil, err
		}
	}
	for id, entity := range snap.AnnotationPages {
		if err := place(entity, id); err != nil {
			return nil, err
		}
	}
	for id, entity := range snap.Annotations {
		if err := place(entity, id); err != nil {
			return nil, err
		}
	}

	for parentID, children := range snap.References {
		if len(children) == 0 {
			continue
		}
		if !s.Has(parentID) {
			return nil, fmt.Errorf("vault: snapshot references unknown parent %s", parentID)
		}
		order := make([]string, 0, len(children))
		for _, childID := range children {
			if !s.Has(childID) {
				return nil, fmt.Errorf("vault: snapshot references unknown child %s", childID)
			}
			if existing, owned := s.reverseRefs[childID]; owned {
				return nil, fmt.Errorf("vault: snapshot owns %s under both %s and %s", childID, existing, parentID)
			}
			s.reverseRefs[childID] = parentID
			order = append(order, childID)
		}
		s.references[parentID] = order
	}

	// Single ownership holds per edge, yet a crafted or corrupted file can
	// still thread the edges into a loop. Every parent chain must terminate
	// within the entity count; a longer walk can only mean a cycle.
	for id := range s.reverseRefs {
		steps := 0
		for current := id; current != ""; current = s.reverseRefs[current] {
			steps++
			if steps > s.Len() {
				return nil, fmt.Errorf("vault: snapshot ownership cycle through %s", id)
			}
		}
	}

	for collectionID, members := range snap.Members {
		for _, memberID := range members {
			if containsID(s.collectionMembers[collectionID], memberID) {
				continue
			}
			s.collectionMembers[collectionID] = append(s.collectionMembers[collectionID], memberID)
			s.memberOfCollections[memberID] = append(s.memberOfCollections[memberID], collectionID)
		}
	}

	if snap.RootID != "" && !s.Has(snap.RootID) {
		return nil, fmt.Errorf("vault: snapshot root %s is not a stored entity", snap.RootID)
	}
	s.rootID = snap.RootID
	return s, nil
}
