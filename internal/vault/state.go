// Package vault implements the normalized in-memory store for IIIF entity
// trees: a per-type entity index, the ownership graph, the collection
// membership side table, pure mutation primitives, an action dispatcher and a
// bounded undo/redo history. States are immutable snapshots; every mutation
// produces a new State sharing unchanged structure with its predecessor.
package vault

import (
	"time"

	"iiifvault/pkg/iiif"
)

// State is one immutable snapshot of the vault. Mutation primitives never
// modify a State in place: they return a new one. Maps are copied per
// snapshot while values (entity pointers, id slices) are shared until a
// primitive replaces them, so unrelated snapshots stay cheap.
type State struct {
	// entities holds detached entity records bucketed by type.
	entities map[iiif.EntityType]map[string]iiif.Entity
	// typeIndex maps every id to its bucket for O(1) lookup.
	typeIndex map[string]iiif.EntityType
	// references lists the ordered owned children of a parent. A parent with
	// no children has no key at all.
	references map[string][]string
	// reverseRefs maps each owned child to its single parent.
	reverseRefs map[string]string
	// collectionMembers / memberOfCollections carry the non-owning
	// many-to-many membership relation, kept symmetric at all times.
	collectionMembers   map[string][]string
	memberOfCollections map[string][]string
	// rootID names the tree root, empty for an empty vault.
	rootID string
	// trashed holds soft-deleted entities with enough context to restore them.
	trashed map[string]TrashRecord
}

// TrashRecord captures everything needed to restore a soft-deleted entity:
// the detached record, its former position in the ownership graph, its
// collection memberships and the children it owned at deletion time.
type TrashRecord struct {
	Entity           iiif.Entity
	TrashedAt        time.Time
	OriginalParentID string
	OriginalIndex    int
	Memberships      []string
	MemberIDs        []string
	ChildIDs         []string
}

// NewState returns an empty vault snapshot.
func NewState() *State {
	s := &State{
		entities:            make(map[iiif.EntityType]map[string]iiif.Entity, len(iiif.EntityTypes())),
		typeIndex:           make(map[string]iiif.EntityType),
		references:          make(map[string][]string),
		reverseRefs:         make(map[string]string),
		collectionMembers:   make(map[string][]string),
		memberOfCollections: make(map[string][]string),
		trashed:             make(map[string]TrashRecord),
	}
	for _, t := range iiif.EntityTypes() {
		s.entities[t] = make(map[string]iiif.Entity)
	}
	return s
}

// clone copies every top-level map of the snapshot. Entity pointers and id
// slices are shared with the source; primitives must replace (never mutate)
// any value they touch in the copy.
func (s *State) clone() *State {
	cp := &State{
		entities:            make(map[iiif.EntityType]map[string]iiif.Entity, len(s.entities)),
		typeIndex:           make(map[string]iiif.EntityType, len(s.typeIndex)),
		references:          make(map[string][]string, len(s.references)),
		reverseRefs:         make(map[string]string, len(s.reverseRefs)),
		collectionMembers:   make(map[string][]string, len(s.collectionMembers)),
		memberOfCollections: make(map[string][]string, len(s.memberOfCollections)),
		rootID:              s.rootID,
		trashed:             make(map[string]TrashRecord, len(s.trashed)),
	}
	for t, bucket := range s.entities {
		bucketCopy := make(map[string]iiif.Entity, len(bucket))
		for id, entity := range bucket {
			bucketCopy[id] = entity
		}
		cp.entities[t] = bucketCopy
	}
	for id, t := range s.typeIndex {
		cp.typeIndex[id] = t
	}
	for id, children := range s.references {
		cp.references[id] = children
	}
	for id, parent := range s.reverseRefs {
		cp.reverseRefs[id] = parent
	}
	for id, members := range s.collectionMembers {
		cp.collectionMembers[id] = members
	}
	for id, collections := range s.memberOfCollections {
		cp.memberOfCollections[id] = collections
	}
	for id, record := range s.trashed {
		cp.trashed[id] = record
	}
	return cp
}

// RootID returns the id of the tree root, empty for an empty vault.
func (s *State) RootID() string { return s.rootID }

// Len reports the number of live entities across all buckets.
func (s *State) Len() int { return len(s.typeIndex) }

// Has reports whether an entity with the given id is live in the vault.
func (s *State) Has(id string) bool {
	_, ok := s.typeIndex[id]
	return ok
}

// lookup returns the stored (shared) entity record, nil if absent.
func (s *State) lookup(id string) iiif.Entity {
	t, ok := s.typeIndex[id]
	if !ok {
		return nil
	}
	return s.entities[t][id]
}

// setEntity places a detached record into its bucket in this snapshot. The
// snapshot must already be a private clone.
func (s *State) setEntity(entity iiif.Entity) {
	id := entity.EntityID()
	s.typeIndex[id] = entity.Type()
	s.entities[entity.Type()][id] = entity
}

// deleteEntity drops a record from its bucket and the type index.
func (s *State) deleteEntity(id string) {
	t, ok := s.typeIndex[id]
	if !ok {
		return
	}
	delete(s.entities[t], id)
	delete(s.typeIndex, id)
}

// setChildren replaces a parent's ordered child list, deleting the key when
// the list is empty so childless parents carry no references entry.
func (s *State) setChildren(parentID string, children []string) {
	if len(children) == 0 {
		delete(s.references, parentID)
		return
	}
	s.references[parentID] = children
}

// removeFromOrder returns order without id, or order itself when id is absent.
func removeFromOrder(order []string, id string) []string {
	for i, existing := range order {
		if existing != id {
			continue
		}
		next := make([]string, 0, len(order)-1)
		next = append(next, order[:i]...)
		return append(next, order[i+1:]...)
	}
	return order
}

// insertIntoOrder returns a new slice with id inserted at index; negative or
// out-of-range indices append.
func insertIntoOrder(order []string, id string, index int) []string {
	if index < 0 || index > len(order) {
		index = len(order)
	}
	next := make([]string, 0, len(order)+1)
	next = append(next, order[:index]...)
	next = append(next, id)
	return append(next, order[index:]...)
}

// containsID reports whether ids contains id.
func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
