package vault

import "time"

// TrashEntity soft-deletes an entity: the record leaves the live index the
// same way RemoveEntity takes it out, but its detached copy, graph position
// and memberships are parked in the trash for later restore. Children are not
// trashed; like RemoveEntity they stay live and orphaned.
func TrashEntity(s *State, id string, now time.Time) (*State, error) {
	stored := s.lookup(id)
	if stored == nil {
		return s, ErrNotFound{ID: id}
	}

	index := -1
	parentID := s.reverseRefs[id]
	if parentID != "" {
		for i, childID := range s.references[parentID] {
			if childID == id {
				index = i
				break
			}
		}
	}
	record := TrashRecord{
		Entity:           stored.CloneDetached(),
		TrashedAt:        now.UTC(),
		OriginalParentID: parentID,
		OriginalIndex:    index,
		Memberships:      append([]string(nil), s.memberOfCollections[id]...),
		MemberIDs:        append([]string(nil), s.collectionMembers[id]...),
		ChildIDs:         append([]string(nil), s.references[id]...),
	}

	next, err := RemoveEntity(s, id)
	if err != nil {
		return s, err
	}
	// RemoveEntity already cloned; recording the trash entry keeps that
	// snapshot private.
	next.trashed[id] = record
	return next, nil
}

// RestoreEntity returns a trashed entity to the live graph. Its former parent
// slot, memberships and child edges are re-established where the counterpart
// entities still exist; edges to since-deleted entities are dropped silently.
func RestoreEntity(s *State, id string) (*State, error) {
	record, ok := s.trashed[id]
	if !ok {
		return s, ErrNotFound{ID: id}
	}
	if s.Has(id) {
		return s, DuplicateIDError{ID: id}
	}

	parentID := record.OriginalParentID
	if parentID != "" && !s.Has(parentID) {
		parentID = ""
	}
	next, err := AddEntity(s, record.Entity, parentID, record.OriginalIndex)
	if err != nil {
		return s, err
	}
	delete(next.trashed, id)

	for _, childID := range record.ChildIDs {
		if !next.Has(childID) || next.reverseRefs[childID] != "" {
			continue
		}
		next.references[id] = append(next.references[id], childID)
		next.reverseRefs[childID] = id
	}
	for _, collectionID := range record.Memberships {
		restored, err := AddToCollection(next, collectionID, id)
		if err != nil {
			continue
		}
		next = restored
	}
	for _, memberID := range record.MemberIDs {
		restored, err := AddToCollection(next, id, memberID)
		if err != nil {
			continue
		}
		next = restored
	}
	return next, nil
}

// TrashedIDs lists the ids currently held in the trash, unordered.
func (s *State) TrashedIDs() []string {
	if len(s.trashed) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.trashed))
	for id := range s.trashed {
		out = append(out, id)
	}
	return out
}

// TrashedRecord returns the trash entry for id, if present.
func (s *State) TrashedRecord(id string) (TrashRecord, bool) {
	record, ok := s.trashed[id]
	return record, ok
}
