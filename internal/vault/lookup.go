package vault

import "iiifvault/pkg/iiif"

// GetEntity returns a detached deep copy of the entity with the given id, or
// nil when no such entity is live. Callers can mutate the result freely
// without affecting any snapshot.
func (s *State) GetEntity(id string) iiif.Entity {
	stored := s.lookup(id)
	if stored == nil {
		return nil
	}
	return stored.CloneDetached()
}

// EntitiesByType returns detached copies of every live entity of the given
// type. Order is unspecified; callers needing a stable order sort by id.
func (s *State) EntitiesByType(t iiif.EntityType) []iiif.Entity {
	bucket := s.entities[t]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]iiif.Entity, 0, len(bucket))
	for _, entity := range bucket {
		out = append(out, entity.CloneDetached())
	}
	return out
}

// CountByType reports the number of live entities per type.
func (s *State) CountByType() map[iiif.EntityType]int {
	counts := make(map[iiif.EntityType]int, len(s.entities))
	for t, bucket := range s.entities {
		if len(bucket) > 0 {
			counts[t] = len(bucket)
		}
	}
	return counts
}
