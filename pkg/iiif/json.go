package iiif

import (
	"encoding/json"
	"fmt"

	"iiifvault/pkg/iiif/extension"
)

// Known wire keys per entity kind. Anything else lands in the extension bag
// and is written back verbatim on marshal.
var (
	commonKeys = []string{"id", "type", "label", "summary", "metadata", "rights", "navDate", "behavior"}

	collectionKeys     = knownKeySet("viewingDirection", "members", "items")
	manifestKeys       = knownKeySet("viewingDirection", "items", "structures")
	canvasKeys         = knownKeySet("width", "height", "duration", "items")
	rangeKeys          = knownKeySet("canvasIds")
	annotationPageKeys = knownKeySet("items")
	annotationKeys     = knownKeySet("motivation", "body", "target")
)

func knownKeySet(extra ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(commonKeys)+len(extra))
	for _, k := range commonKeys {
		set[k] = struct{}{}
	}
	for _, k := range extra {
		set[k] = struct{}{}
	}
	return set
}

// DecodeEntity parses a JSON node into the entity kind named by its `type`
// property.
func DecodeEntity(data []byte) (Entity, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("iiif: decode entity header: %w", err)
	}
	t, err := ParseEntityType(head.Type)
	if err != nil {
		return nil, err
	}
	entity, err := NewEntity(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// absorbUnknown collects every wire key outside the known set into a bag.
func absorbUnknown(data []byte, known map[string]struct{}) (extension.Bag, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return extension.Bag{}, err
	}
	bag := extension.NewBag()
	for key, rawValue := range raw {
		if _, ok := known[key]; ok {
			continue
		}
		var value any
		if err := json.Unmarshal(rawValue, &value); err != nil {
			return extension.Bag{}, fmt.Errorf("iiif: decode extension %q: %w", key, err)
		}
		bag.Set(key, value)
	}
	return bag, nil
}

// marshalEntity renders the typed fields, injects the wire `type`, and merges
// the extension bag without letting extensions shadow known properties.
func marshalEntity(alias any, t EntityType, bag extension.Bag) ([]byte, error) {
	base, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	var wire map[string]any
	if err := json.Unmarshal(base, &wire); err != nil {
		return nil, err
	}
	wire["type"] = string(t)
	for key, value := range bag.Raw() {
		if _, exists := wire[key]; !exists {
			wire[key] = value
		}
	}
	return json.Marshal(wire)
}

type collectionAlias Collection

// MarshalJSON implements json.Marshaler for Collection.
func (c Collection) MarshalJSON() ([]byte, error) {
	return marshalEntity(collectionAlias(c), EntityCollection, c.Bag)
}

// UnmarshalJSON decodes a Collection, dispatching polymorphic items by their
// wire type and capturing unknown keys.
func (c *Collection) UnmarshalJSON(data []byte) error {
	type alias Collection
	aux := struct {
		*alias
		Items []json.RawMessage `json:"items"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Items = nil
	for _, rawItem := range aux.Items {
		child, err := DecodeEntity(rawItem)
		if err != nil {
			return err
		}
		switch child.Type() {
		case EntityCollection, EntityManifest:
			c.Items = append(c.Items, child)
		default:
			return fmt.Errorf("iiif: collection %s cannot contain %s", c.ID, child.Type())
		}
	}
	bag, err := absorbUnknown(data, collectionKeys)
	if err != nil {
		return err
	}
	c.Bag = bag
	return nil
}

type manifestAlias Manifest

// MarshalJSON implements json.Marshaler for Manifest.
func (m Manifest) MarshalJSON() ([]byte, error) {
	return marshalEntity(manifestAlias(m), EntityManifest, m.Bag)
}

// UnmarshalJSON decodes a Manifest and captures unknown keys.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type alias Manifest
	if err := json.Unmarshal(data, (*alias)(m)); err != nil {
		return err
	}
	bag, err := absorbUnknown(data, manifestKeys)
	if err != nil {
		return err
	}
	m.Bag = bag
	return nil
}

type canvasAlias Canvas

// MarshalJSON implements json.Marshaler for Canvas.
func (c Canvas) MarshalJSON() ([]byte, error) {
	return marshalEntity(canvasAlias(c), EntityCanvas, c.Bag)
}

// UnmarshalJSON decodes a Canvas and captures unknown keys.
func (c *Canvas) UnmarshalJSON(data []byte) error {
	type alias Canvas
	if err := json.Unmarshal(data, (*alias)(c)); err != nil {
		return err
	}
	bag, err := absorbUnknown(data, canvasKeys)
	if err != nil {
		return err
	}
	c.Bag = bag
	return nil
}

type rangeAlias Range

// MarshalJSON implements json.Marshaler for Range.
func (r Range) MarshalJSON() ([]byte, error) {
	return marshalEntity(rangeAlias(r), EntityRange, r.Bag)
}

// UnmarshalJSON decodes a Range and captures unknown keys.
func (r *Range) UnmarshalJSON(data []byte) error {
	type alias Range
	if err := json.Unmarshal(data, (*alias)(r)); err != nil {
		return err
	}
	bag, err := absorbUnknown(data, rangeKeys)
	if err != nil {
		return err
	}
	r.Bag = bag
	return nil
}

type annotationPageAlias AnnotationPage

// MarshalJSON implements json.Marshaler for AnnotationPage.
func (p AnnotationPage) MarshalJSON() ([]byte, error) {
	return marshalEntity(annotationPageAlias(p), EntityAnnotationPage, p.Bag)
}

// UnmarshalJSON decodes an AnnotationPage and captures unknown keys.
func (p *AnnotationPage) UnmarshalJSON(data []byte) error {
	type alias AnnotationPage
	if err := json.Unmarshal(data, (*alias)(p)); err != nil {
		return err
	}
	bag, err := absorbUnknown(data, annotationPageKeys)
	if err != nil {
		return err
	}
	p.Bag = bag
	return nil
}

type annotationAlias Annotation

// MarshalJSON implements json.Marshaler for Annotation.
func (a Annotation) MarshalJSON() ([]byte, error) {
	return marshalEntity(annotationAlias(a), EntityAnnotation, a.Bag)
}

// UnmarshalJSON decodes an Annotation and captures unknown keys.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	type alias Annotation
	if err := json.Unmarshal(data, (*alias)(a)); err != nil {
		return err
	}
	bag, err := absorbUnknown(data, annotationKeys)
	if err != nil {
		return err
	}
	a.Bag = bag
	return nil
}
