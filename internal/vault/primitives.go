package vault

import (
	"fmt"
	"time"

	"iiifvault/pkg/iiif"
)

// containment lists which child kinds each parent kind may own.
var containment = map[iiif.EntityType]map[iiif.EntityType]bool{
	iiif.EntityCollection: {
		iiif.EntityCollection: true,
		iiif.EntityManifest:   true,
	},
	iiif.EntityManifest: {
		iiif.EntityCanvas: true,
		iiif.EntityRange:  true,
	},
	iiif.EntityCanvas: {
		iiif.EntityAnnotationPage: true,
	},
	iiif.EntityAnnotationPage: {
		iiif.EntityAnnotation: true,
	},
}

func canContain(parent, child iiif.EntityType) bool {
	return containment[parent][child]
}

// AddEntity inserts an entity (including any subtree it carries) under
// parentID at the given child index; a negative index appends. An empty
// parentID adds the entity unowned, and seeds the root when the vault is
// empty. The input state is returned unchanged on any error.
func AddEntity(s *State, entity iiif.Entity, parentID string, index int) (*State, error) {
	if entity == nil || entity.EntityID() == "" {
		return s, InvalidShapeError{Reason: "entity without id"}
	}
	id := entity.EntityID()
	if s.Has(id) {
		return s, DuplicateIDError{ID: id}
	}
	if parentID != "" {
		parentType, ok := s.typeIndex[parentID]
		if !ok {
			return s, ErrNotFound{ID: parentID}
		}
		if !canContain(parentType, entity.Type()) {
			return s, InvalidShapeError{
				Reason: fmt.Sprintf("%s cannot contain %s", parentType, entity.Type()),
			}
		}
	}

	next := s.clone()
	if err := normalizeNode(next, entity); err != nil {
		return s, err
	}
	if parentID != "" {
		next.setChildren(parentID, insertIntoOrder(next.references[parentID], id, index))
		next.reverseRefs[id] = parentID
	} else if next.rootID == "" {
		next.rootID = id
	}
	return next, nil
}

// RemoveEntity deletes a single entity. Removal does not cascade: owned
// children stay live but lose their parent edge. Membership entries naming
// the entity in either direction are cleared so no dangling references
// remain. Removing the root empties rootID.
func RemoveEntity(s *State, id string) (*State, error) {
	if !s.Has(id) {
		return s, ErrNotFound{ID: id}
	}

	next := s.clone()
	next.deleteEntity(id)

	if parentID, owned := next.reverseRefs[id]; owned {
		delete(next.reverseRefs, id)
		next.setChildren(parentID, removeFromOrder(next.references[parentID], id))
	}
	for _, childID := range next.references[id] {
		delete(next.reverseRefs, childID)
	}
	delete(next.references, id)

	// Membership cleanup in both roles: as a collection and as a member.
	for _, memberID := range next.collectionMembers[id] {
		next.removeMembership(id, memberID)
	}
	for _, collectionID := range next.memberOfCollections[id] {
		next.removeMembership(collectionID, id)
	}

	if next.rootID == id {
		next.rootID = ""
	}
	return next, nil
}

// removeMembership deletes one membership edge from both side tables on an
// already-private snapshot.
func (s *State) removeMembership(collectionID, memberID string) {
	if members := removeFromOrder(s.collectionMembers[collectionID], memberID); len(members) == 0 {
		delete(s.collectionMembers, collectionID)
	} else {
		s.collectionMembers[collectionID] = members
	}
	if collections := removeFromOrder(s.memberOfCollections[memberID], collectionID); len(collections) == 0 {
		delete(s.memberOfCollections, memberID)
	} else {
		s.memberOfCollections[memberID] = collections
	}
}

// Patch carries a shallow merge for UpdateEntity. Nil pointers leave the
// field untouched; a set pointer replaces the field wholesale. Fields that do
// not apply to the target's kind are ignored. Extensions merges into the
// extension bag, with nil values deleting keys.
type Patch struct {
	Label            *iiif.LanguageMap
	Summary          *iiif.LanguageMap
	Metadata         *[]iiif.MetadataEntry
	Rights           *string
	NavDate          *time.Time
	ClearNavDate     bool
	Behavior         *[]string
	ViewingDirection *string
	Width            *int
	Height           *int
	Duration         *float64
	Motivation       *string
	Body             any
	Target           any
	CanvasIDs        *[]string
	Extensions       map[string]any
}

// UpdateEntity applies a shallow patch to the entity's own fields. Structure
// is untouched: children, parent and memberships never change here.
func UpdateEntity(s *State, id string, patch Patch) (*State, error) {
	stored := s.lookup(id)
	if stored == nil {
		return s, ErrNotFound{ID: id}
	}

	next := s.clone()
	updated := stored.CloneDetached()
	applyPatch(updated, patch)
	next.setEntity(updated)
	return next, nil
}

func applyPatch(entity iiif.Entity, patch Patch) {
	applyDescriptive := func(d *iiif.Descriptive) {
		if patch.Label != nil {
			d.Label = patch.Label.Clone()
		}
		if patch.Summary != nil {
			d.Summary = patch.Summary.Clone()
		}
		if patch.Metadata != nil {
			entries := make([]iiif.MetadataEntry, len(*patch.Metadata))
			for i, entry := range *patch.Metadata {
				entries[i] = entry.Clone()
			}
			d.Metadata = entries
		}
		if patch.Rights != nil {
			d.Rights = *patch.Rights
		}
		if patch.ClearNavDate {
			d.NavDate = nil
		} else if patch.NavDate != nil {
			at := *patch.NavDate
			d.NavDate = &at
		}
		if patch.Behavior != nil {
			d.Behavior = append([]string(nil), *patch.Behavior...)
		}
	}

	switch typed := entity.(type) {
	case *iiif.Collection:
		applyDescriptive(&typed.Descriptive)
		if patch.ViewingDirection != nil {
			typed.ViewingDirection = *patch.ViewingDirection
		}
	case *iiif.Manifest:
		applyDescriptive(&typed.Descriptive)
		if patch.ViewingDirection != nil {
			typed.ViewingDirection = *patch.ViewingDirection
		}
	case *iiif.Canvas:
		applyDescriptive(&typed.Descriptive)
		if patch.Width != nil {
			typed.Width = *patch.Width
		}
		if patch.Height != nil {
			typed.Height = *patch.Height
		}
		if patch.Duration != nil {
			typed.Duration = *patch.Duration
		}
	case *iiif.Range:
		applyDescriptive(&typed.Descriptive)
		if patch.CanvasIDs != nil {
			typed.CanvasIDs = append([]string(nil), *patch.CanvasIDs...)
		}
	case *iiif.AnnotationPage:
		applyDescriptive(&typed.Descriptive)
	case *iiif.Annotation:
		applyDescriptive(&typed.Descriptive)
		if patch.Motivation != nil {
			typed.Motivation = *patch.Motivation
		}
		if patch.Body != nil {
			typed.Body = patch.Body
		}
		if patch.Target != nil {
			typed.Target = patch.Target
		}
	}

	if len(patch.Extensions) > 0 {
		bag := entity.Extensions()
		for key, value := range patch.Extensions {
			if value == nil {
				bag.Remove(key)
				continue
			}
			bag.Set(key, value)
		}
	}
}

// AddToCollection records a non-owning membership of memberID in
// collectionID. The ownership graph is untouched. Adding an existing
// membership is a no-op returning the input state.
func AddToCollection(s *State, collectionID, memberID string) (*State, error) {
	if s.typeIndex[collectionID] != iiif.EntityCollection {
		if !s.Has(collectionID) {
			return s, ErrNotFound{Type: iiif.EntityCollection, ID: collectionID}
		}
		return s, InvalidShapeError{Reason: fmt.Sprintf("%s is not a collection", collectionID)}
	}
	if !s.Has(memberID) {
		return s, ErrNotFound{ID: memberID}
	}
	if containsID(s.collectionMembers[collectionID], memberID) {
		return s, nil
	}

	next := s.clone()
	members := append([]string(nil), next.collectionMembers[collectionID]...)
	next.collectionMembers[collectionID] = append(members, memberID)
	collections := append([]string(nil), next.memberOfCollections[memberID]...)
	next.memberOfCollections[memberID] = append(collections, collectionID)
	return next, nil
}

// RemoveFromCollection clears a membership edge from both side tables.
// Removing an absent membership is a no-op returning the input state.
func RemoveFromCollection(s *State, collectionID, memberID string) (*State, error) {
	if !s.Has(collectionID) {
		return s, ErrNotFound{Type: iiif.EntityCollection, ID: collectionID}
	}
	if !containsID(s.collectionMembers[collectionID], memberID) {
		return s, nil
	}

	next := s.clone()
	next.removeMembership(collectionID, memberID)
	return next, nil
}

// ReorderChildren replaces a parent's child order with newOrder, which must
// be an exact permutation of the current children.
func ReorderChildren(s *State, parentID string, newOrder []string) (*State, error) {
	if !s.Has(parentID) {
		return s, ErrNotFound{ID: parentID}
	}
	current := s.references[parentID]
	if len(newOrder) != len(current) {
		return s, InvalidShapeError{
			Reason: fmt.Sprintf("reorder of %s lists %d children, parent owns %d", parentID, len(newOrder), len(current)),
		}
	}
	seen := make(map[string]bool, len(newOrder))
	for _, id := range newOrder {
		if seen[id] {
			return s, InvalidShapeError{Reason: fmt.Sprintf("reorder of %s repeats %s", parentID, id)}
		}
		seen[id] = true
		if !containsID(current, id) {
			return s, InvalidShapeError{Reason: fmt.Sprintf("%s is not a child of %s", id, parentID)}
		}
	}

	next := s.clone()
	next.setChildren(parentID, append([]string(nil), newOrder...))
	return next, nil
}

// MoveItem reparents an entity under newParentID at the given child index,
// preserving the subtree below it. Moves that would make an entity its own
// ancestor are rejected, as is moving the root.
func MoveItem(s *State, id, newParentID string, index int) (*State, error) {
	if !s.Has(id) {
		return s, ErrNotFound{ID: id}
	}
	parentType, ok := s.typeIndex[newParentID]
	if !ok {
		return s, ErrNotFound{ID: newParentID}
	}
	if id == s.rootID {
		return s, InvalidShapeError{Reason: "cannot move the root entity"}
	}
	if !canContain(parentType, s.typeIndex[id]) {
		return s, InvalidShapeError{
			Reason: fmt.Sprintf("%s cannot contain %s", parentType, s.typeIndex[id]),
		}
	}
	if s.isDescendant(id, newParentID) {
		return s, InvalidShapeError{
			Reason: fmt.Sprintf("moving %s under %s would create an ownership cycle", id, newParentID),
		}
	}

	next := s.clone()
	if oldParentID, owned := next.reverseRefs[id]; owned {
		if oldParentID == newParentID {
			// Same-parent move is a positional shuffle.
			order := removeFromOrder(next.references[oldParentID], id)
			next.setChildren(oldParentID, insertIntoOrder(order, id, index))
			return next, nil
		}
		next.setChildren(oldParentID, removeFromOrder(next.references[oldParentID], id))
	}
	next.setChildren(newParentID, insertIntoOrder(next.references[newParentID], id, index))
	next.reverseRefs[id] = newParentID
	return next, nil
}
