package iiif

import "time"

// LanguageMap holds language-tagged text values, e.g. {"en": ["Page 1"]}.
// The "none" key carries untagged strings per the IIIF presentation model.
type LanguageMap map[string][]string

// Clone returns a deep copy of the language map.
func (m LanguageMap) Clone() LanguageMap {
	if m == nil {
		return nil
	}
	out := make(LanguageMap, len(m))
	for lang, values := range m {
		out[lang] = append([]string(nil), values...)
	}
	return out
}

// Equal reports whether two language maps carry the same entries.
func (m LanguageMap) Equal(other LanguageMap) bool {
	if len(m) != len(other) {
		return false
	}
	for lang, values := range m {
		theirs, ok := other[lang]
		if !ok || len(values) != len(theirs) {
			return false
		}
		for i := range values {
			if values[i] != theirs[i] {
				return false
			}
		}
	}
	return true
}

// MetadataEntry is a single label/value pair from an entity's descriptive
// metadata list.
type MetadataEntry struct {
	Label LanguageMap `json:"label"`
	Value LanguageMap `json:"value"`
}

// Clone returns a deep copy of the entry.
func (e MetadataEntry) Clone() MetadataEntry {
	return MetadataEntry{Label: e.Label.Clone(), Value: e.Value.Clone()}
}

func cloneMetadata(entries []MetadataEntry) []MetadataEntry {
	if entries == nil {
		return nil
	}
	out := make([]MetadataEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
