// Package iiif defines the typed content model for a IIIF-style archive:
// Collections, Manifests, Canvases, Ranges, AnnotationPages and Annotations.
// Each entity carries a fixed set of known fields plus an opaque extension
// bag preserving every property the schema does not recognise, so a tree can
// be normalized and denormalized without loss.
package iiif

import (
	"fmt"
	"time"

	"iiifvault/pkg/iiif/extension"
)

// EntityType identifies the kind of record stored in the vault. Values match
// the IIIF wire `type` property.
type EntityType string

// Supported entity type identifiers used in references and persistence buckets.
const (
	// EntityCollection identifies a grouping of manifests and collections.
	EntityCollection EntityType = "Collection"
	// EntityManifest identifies a described unit of content with ordered canvases.
	EntityManifest EntityType = "Manifest"
	// EntityCanvas identifies a single page, frame or time slice.
	EntityCanvas EntityType = "Canvas"
	// EntityRange identifies a named sub-sequence of canvases within a manifest.
	EntityRange EntityType = "Range"
	// EntityAnnotationPage identifies a container of annotations on a canvas.
	EntityAnnotationPage EntityType = "AnnotationPage"
	// EntityAnnotation identifies a single piece of painted or supplementing content.
	EntityAnnotation EntityType = "Annotation"
)

// EntityTypes lists every supported type in containment order, outermost first.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityCollection,
		EntityManifest,
		EntityCanvas,
		EntityRange,
		EntityAnnotationPage,
		EntityAnnotation,
	}
}

// ParseEntityType validates a wire type string.
func ParseEntityType(value string) (EntityType, error) {
	switch t := EntityType(value); t {
	case EntityCollection, EntityManifest, EntityCanvas, EntityRange,
		EntityAnnotationPage, EntityAnnotation:
		return t, nil
	}
	return "", fmt.Errorf("iiif: unknown entity type %q", value)
}

// Descriptive contains the fields common to all entity kinds.
type Descriptive struct {
	ID       string          `json:"id"`
	Label    LanguageMap     `json:"label,omitempty"`
	Summary  LanguageMap     `json:"summary,omitempty"`
	Metadata []MetadataEntry `json:"metadata,omitempty"`
	Rights   string          `json:"rights,omitempty"`
	NavDate  *time.Time      `json:"navDate,omitempty"`
	Behavior []string        `json:"behavior,omitempty"`
}

func (d Descriptive) clone() Descriptive {
	cp := d
	cp.Label = d.Label.Clone()
	cp.Summary = d.Summary.Clone()
	cp.Metadata = cloneMetadata(d.Metadata)
	cp.NavDate = cloneTime(d.NavDate)
	cp.Behavior = append([]string(nil), d.Behavior...)
	return cp
}

// Entity is the polymorphic view over the six entity kinds. Structural items
// are the ordered children the entity owns hierarchically in tree form; a
// normalized entity has none.
type Entity interface {
	// EntityID returns the globally unique identifier.
	EntityID() string
	// Type returns the fixed type tag.
	Type() EntityType
	// Clone deep-copies the entity including its structural children.
	Clone() Entity
	// CloneDetached deep-copies the entity's own fields with structural
	// children dropped; this is the shape stored in the normalized index.
	CloneDetached() Entity
	// StructuralItems returns the ordered owned children in tree form.
	StructuralItems() []Entity
	// AttachItems rebuilds the tree form from ordered children; it rejects
	// children of a kind the entity cannot contain.
	AttachItems(children []Entity) error
	// Extensions exposes the opaque extension bag for in-place edits.
	Extensions() *extension.Bag
}

// Collection groups manifests and nested collections. Items is the owned
// hierarchy; Members lists non-owning references to entities curated into
// this collection independent of ownership.
type Collection struct {
	Descriptive
	ViewingDirection string        `json:"viewingDirection,omitempty"`
	Members          []string      `json:"members,omitempty"`
	Items            []Entity      `json:"items,omitempty"`
	Bag              extension.Bag `json:"-"`
}

// Manifest is a described unit of content containing ordered canvases and an
// optional range structure.
type Manifest struct {
	Descriptive
	ViewingDirection string        `json:"viewingDirection,omitempty"`
	Items            []*Canvas     `json:"items,omitempty"`
	Structures       []*Range      `json:"structures,omitempty"`
	Bag              extension.Bag `json:"-"`
}

// Canvas is a single page, frame or time slice with spatial or temporal extent.
type Canvas struct {
	Descriptive
	Width    int               `json:"width,omitempty"`
	Height   int               `json:"height,omitempty"`
	Duration float64           `json:"duration,omitempty"`
	Items    []*AnnotationPage `json:"items,omitempty"`
	Bag      extension.Bag     `json:"-"`
}

// Range names a sub-sequence of a manifest's canvases (e.g. a chapter).
// CanvasIDs are references into the owning manifest, not owned children.
type Range struct {
	Descriptive
	CanvasIDs []string      `json:"canvasIds,omitempty"`
	Bag       extension.Bag `json:"-"`
}

// AnnotationPage collects annotations attached to a canvas.
type AnnotationPage struct {
	Descriptive
	Items []*Annotation `json:"items,omitempty"`
	Bag   extension.Bag `json:"-"`
}

// Annotation is a single piece of content or commentary. Body and Target are
// opaque JSON values the core never interprets.
type Annotation struct {
	Descriptive
	Motivation string        `json:"motivation,omitempty"`
	Body       any           `json:"body,omitempty"`
	Target     any           `json:"target,omitempty"`
	Bag        extension.Bag `json:"-"`
}

// Compile-time interface assertions for the six entity kinds.
var (
	_ Entity = (*Collection)(nil)
	_ Entity = (*Manifest)(nil)
	_ Entity = (*Canvas)(nil)
	_ Entity = (*Range)(nil)
	_ Entity = (*AnnotationPage)(nil)
	_ Entity = (*Annotation)(nil)
)

// EntityID implements Entity.
func (c *Collection) EntityID() string     { return c.ID }
func (m *Manifest) EntityID() string       { return m.ID }
func (c *Canvas) EntityID() string         { return c.ID }
func (r *Range) EntityID() string          { return r.ID }
func (p *AnnotationPage) EntityID() string { return p.ID }
func (a *Annotation) EntityID() string     { return a.ID }

// Type implements Entity.
func (c *Collection) Type() EntityType     { return EntityCollection }
func (m *Manifest) Type() EntityType       { return EntityManifest }
func (c *Canvas) Type() EntityType         { return EntityCanvas }
func (r *Range) Type() EntityType          { return EntityRange }
func (p *AnnotationPage) Type() EntityType { return EntityAnnotationPage }
func (a *Annotation) Type() EntityType     { return EntityAnnotation }

// Extensions implements Entity.
func (c *Collection) Extensions() *extension.Bag     { return &c.Bag }
func (m *Manifest) Extensions() *extension.Bag       { return &m.Bag }
func (c *Canvas) Extensions() *extension.Bag         { return &c.Bag }
func (r *Range) Extensions() *extension.Bag          { return &r.Bag }
func (p *AnnotationPage) Extensions() *extension.Bag { return &p.Bag }
func (a *Annotation) Extensions() *extension.Bag     { return &a.Bag }

// CloneDetached implements Entity.
func (c *Collection) CloneDetached() Entity {
	cp := &Collection{
		Descriptive:      c.Descriptive.clone(),
		ViewingDirection: c.ViewingDirection,
		Members:          append([]string(nil), c.Members...),
		Bag:              c.Bag.Clone(),
	}
	return cp
}

func (m *Manifest) CloneDetached() Entity {
	return &Manifest{
		Descriptive:      m.Descriptive.clone(),
		ViewingDirection: m.ViewingDirection,
		Bag:              m.Bag.Clone(),
	}
}

func (c *Canvas) CloneDetached() Entity {
	return &Canvas{
		Descriptive: c.Descriptive.clone(),
		Width:       c.Width,
		Height:      c.Height,
		Duration:    c.Duration,
		Bag:         c.Bag.Clone(),
	}
}

func (r *Range) CloneDetached() Entity {
	return &Range{
		Descriptive: r.Descriptive.clone(),
		CanvasIDs:   append([]string(nil), r.CanvasIDs...),
		Bag:         r.Bag.Clone(),
	}
}

func (p *AnnotationPage) CloneDetached() Entity {
	return &AnnotationPage{
		Descriptive: p.Descriptive.clone(),
		Bag:         p.Bag.Clone(),
	}
}

func (a *Annotation) CloneDetached() Entity {
	return &Annotation{
		Descriptive: a.Descriptive.clone(),
		Motivation:  a.Motivation,
		Body:        extension.CloneValue(a.Body),
		Target:      extension.CloneValue(a.Target),
		Bag:         a.Bag.Clone(),
	}
}

// Clone implements Entity.
func (c *Collection) Clone() Entity {
	cp := c.CloneDetached().(*Collection)
	if c.Items != nil {
		cp.Items = make([]Entity, len(c.Items))
		for i, child := range c.Items {
			cp.Items[i] = child.Clone()
		}
	}
	return cp
}

func (m *Manifest) Clone() Entity {
	cp := m.CloneDetached().(*Manifest)
	if m.Items != nil {
		cp.Items = make([]*Canvas, len(m.Items))
		for i, child := range m.Items {
			cp.Items[i] = child.Clone().(*Canvas)
		}
	}
	if m.Structures != nil {
		cp.Structures = make([]*Range, len(m.Structures))
		for i, child := range m.Structures {
			cp.Structures[i] = child.Clone().(*Range)
		}
	}
	return cp
}

func (c *Canvas) Clone() Entity {
	cp := c.CloneDetached().(*Canvas)
	if c.Items != nil {
		cp.Items = make([]*AnnotationPage, len(c.Items))
		for i, child := range c.Items {
			cp.Items[i] = child.Clone().(*AnnotationPage)
		}
	}
	return cp
}

func (r *Range) Clone() Entity { return r.CloneDetached() }

func (p *AnnotationPage) Clone() Entity {
	cp := p.CloneDetached().(*AnnotationPage)
	if p.Items != nil {
		cp.Items = make([]*Annotation, len(p.Items))
		for i, child := range p.Items {
			cp.Items[i] = child.Clone().(*Annotation)
		}
	}
	return cp
}

func (a *Annotation) Clone() Entity { return a.CloneDetached() }

// StructuralItems implements Entity. Manifest structures follow canvases so a
// single ordered child list round-trips both containment properties.
func (c *Collection) StructuralItems() []Entity {
	out := make([]Entity, len(c.Items))
	copy(out, c.Items)
	return out
}

func (m *Manifest) StructuralItems() []Entity {
	out := make([]Entity, 0, len(m.Items)+len(m.Structures))
	for _, canvas := range m.Items {
		out = append(out, canvas)
	}
	for _, rng := range m.Structures {
		out = append(out, rng)
	}
	return out
}

func (c *Canvas) StructuralItems() []Entity {
	out := make([]Entity, 0, len(c.Items))
	for _, page := range c.Items {
		out = append(out, page)
	}
	return out
}

func (r *Range) StructuralItems() []Entity { return nil }

func (p *AnnotationPage) StructuralItems() []Entity {
	out := make([]Entity, 0, len(p.Items))
	for _, ann := range p.Items {
		out = append(out, ann)
	}
	return out
}

func (a *Annotation) StructuralItems() []Entity { return nil }

// AttachItems implements Entity.
func (c *Collection) AttachItems(children []Entity) error {
	items := make([]Entity, 0, len(children))
	for _, child := range children {
		switch child.Type() {
		case EntityCollection, EntityManifest:
			items = append(items, child)
		default:
			return fmt.Errorf("iiif: collection %s cannot contain %s", c.ID, child.Type())
		}
	}
	if len(items) == 0 {
		items = nil
	}
	c.Items = items
	return nil
}

func (m *Manifest) AttachItems(children []Entity) error {
	var canvases []*Canvas
	var ranges []*Range
	for _, child := range children {
		switch typed := child.(type) {
		case *Canvas:
			canvases = append(canvases, typed)
		case *Range:
			ranges = append(ranges, typed)
		default:
			return fmt.Errorf("iiif: manifest %s cannot contain %s", m.ID, child.Type())
		}
	}
	m.Items = canvases
	m.Structures = ranges
	return nil
}

func (c *Canvas) AttachItems(children []Entity) error {
	var pages []*AnnotationPage
	for _, child := range children {
		page, ok := child.(*AnnotationPage)
		if !ok {
			return fmt.Errorf("iiif: canvas %s cannot contain %s", c.ID, child.Type())
		}
		pages = append(pages, page)
	}
	c.Items = pages
	return nil
}

func (r *Range) AttachItems(children []Entity) error {
	if len(children) > 0 {
		return fmt.Errorf("iiif: range %s does not own children", r.ID)
	}
	return nil
}

func (p *AnnotationPage) AttachItems(children []Entity) error {
	var annotations []*Annotation
	for _, child := range children {
		ann, ok := child.(*Annotation)
		if !ok {
			return fmt.Errorf("iiif: annotation page %s cannot contain %s", p.ID, child.Type())
		}
		annotations = append(annotations, ann)
	}
	p.Items = annotations
	return nil
}

func (a *Annotation) AttachItems(children []Entity) error {
	if len(children) > 0 {
		return fmt.Errorf("iiif: annotation %s does not own children", a.ID)
	}
	return nil
}

// NewEntity returns a zero entity of the given type, for decoding and tests.
func NewEntity(t EntityType) (Entity, error) {
	switch t {
	case EntityCollection:
		return &Collection{}, nil
	case EntityManifest:
		return &Manifest{}, nil
	case EntityCanvas:
		return &Canvas{}, nil
	case EntityRange:
		return &Range{}, nil
	case EntityAnnotationPage:
		return &AnnotationPage{}, nil
	case EntityAnnotation:
		return &Annotation{}, nil
	default:
		return nil, fmt.Errorf("iiif: unknown entity type %q", t)
	}
}
