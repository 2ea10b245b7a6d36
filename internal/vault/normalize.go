package vault

import (
	"fmt"

	"iiifvault/pkg/iiif"
)

// Normalize flattens an entity tree into a fresh snapshot: each node is
// stored detached in its type bucket, ownership edges land in references and
// reverseRefs, and collection member lists move into the membership side
// table. A repeated id anywhere in the tree fails the whole normalization
// with a DuplicateIDError.
func Normalize(root iiif.Entity) (*State, error) {
	s := NewState()
	if root == nil {
		return s, nil
	}
	if err := normalizeNode(s, root); err != nil {
		return nil, err
	}
	s.rootID = root.EntityID()
	return s, nil
}

func normalizeNode(s *State, node iiif.Entity) error {
	id := node.EntityID()
	if id == "" {
		return InvalidShapeError{Reason: fmt.Sprintf("%s without id", node.Type())}
	}
	if _, exists := s.typeIndex[id]; exists {
		return DuplicateIDError{ID: id}
	}

	detached := node.CloneDetached()
	if coll, ok := detached.(*iiif.Collection); ok {
		// The side table is the single source of truth for membership;
		// the stored record carries no member list of its own. The slices are
		// replaced, not grown in place: when s is a clone they still share
		// backing arrays with the source snapshot and its other descendants.
		for _, memberID := range coll.Members {
			if containsID(s.collectionMembers[id], memberID) {
				continue
			}
			members := append([]string(nil), s.collectionMembers[id]...)
			s.collectionMembers[id] = append(members, memberID)
			collections := append([]string(nil), s.memberOfCollections[memberID]...)
			s.memberOfCollections[memberID] = append(collections, id)
		}
		coll.Members = nil
	}
	s.setEntity(detached)

	children := node.StructuralItems()
	if len(children) == 0 {
		return nil
	}
	order := make([]string, 0, len(children))
	for _, child := range children {
		if err := normalizeNode(s, child); err != nil {
			return err
		}
		childID := child.EntityID()
		order = append(order, childID)
		s.reverseRefs[childID] = id
	}
	s.references[id] = order
	return nil
}

// Denormalize rebuilds the root entity tree from a snapshot. The result is a
// fully detached deep copy: mutating it never touches the snapshot. An empty
// vault denormalizes to nil.
func Denormalize(s *State) (iiif.Entity, error) {
	if s.rootID == "" {
		return nil, nil
	}
	return denormalizeNode(s, s.rootID)
}

// DenormalizeEntity rebuilds the subtree rooted at id.
func DenormalizeEntity(s *State, id string) (iiif.Entity, error) {
	if !s.Has(id) {
		return nil, ErrNotFound{ID: id}
	}
	return denormalizeNode(s, id)
}

func denormalizeNode(s *State, id string) (iiif.Entity, error) {
	stored := s.lookup(id)
	if stored == nil {
		return nil, ErrNotFound{ID: id}
	}
	node := stored.CloneDetached()
	if coll, ok := node.(*iiif.Collection); ok {
		if members := s.collectionMembers[id]; len(members) > 0 {
			coll.Members = append([]string(nil), members...)
		}
	}
	childIDs := s.references[id]
	if len(childIDs) == 0 {
		return node, nil
	}
	children := make([]iiif.Entity, 0, len(childIDs))
	for _, childID := range childIDs {
		child, err := denormalizeNode(s, childID)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if err := node.AttachItems(children); err != nil {
		return nil, err
	}
	return node, nil
}
