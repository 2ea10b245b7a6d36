package vault

import "iiifvault/pkg/iiif"

// ChildIDs returns the ordered owned children of parentID. Childless parents
// and unknown ids both yield nil.
func (s *State) ChildIDs(parentID string) []string {
	children := s.references[parentID]
	if len(children) == 0 {
		return nil
	}
	return append([]string(nil), children...)
}

// ParentID returns the owner of id, or empty when id is a root, orphaned or
// unknown.
func (s *State) ParentID(id string) string {
	return s.reverseRefs[id]
}

// Ancestors walks the ownership chain from id's parent up to the root,
// nearest first. An unknown or rootless id yields nil.
func (s *State) Ancestors(id string) []string {
	var out []string
	for current := s.reverseRefs[id]; current != ""; current = s.reverseRefs[current] {
		out = append(out, current)
	}
	return out
}

// Descendants returns every entity owned transitively by id in pre-order.
func (s *State) Descendants(id string) []string {
	var out []string
	var walk func(string)
	walk = func(current string) {
		for _, childID := range s.references[current] {
			out = append(out, childID)
			walk(childID)
		}
	}
	walk(id)
	return out
}

// isDescendant reports whether candidate sits in the subtree owned by id,
// including id itself. Used to reject ownership cycles on moves.
func (s *State) isDescendant(id, candidate string) bool {
	if id == candidate {
		return true
	}
	for current := s.reverseRefs[candidate]; current != ""; current = s.reverseRefs[current] {
		if current == id {
			return true
		}
	}
	return false
}

// CollectionMembers returns the ordered member ids curated into a collection.
func (s *State) CollectionMembers(collectionID string) []string {
	members := s.collectionMembers[collectionID]
	if len(members) == 0 {
		return nil
	}
	return append([]string(nil), members...)
}

// CollectionsContaining returns the collections that reference id as a
// member, in the order the memberships were recorded.
func (s *State) CollectionsContaining(id string) []string {
	collections := s.memberOfCollections[id]
	if len(collections) == 0 {
		return nil
	}
	return append([]string(nil), collections...)
}

// IsOrphanManifest reports whether id names a live manifest that no
// collection references as a member. Ownership does not count: a manifest
// owned by a collection but absent from every member list is still an orphan
// in the curatorial sense.
func (s *State) IsOrphanManifest(id string) bool {
	if s.typeIndex[id] != iiif.EntityManifest {
		return false
	}
	return len(s.memberOfCollections[id]) == 0
}
