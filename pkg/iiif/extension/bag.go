// Package extension provides the opaque property bag carried by every IIIF
// entity. Properties the typed schema does not recognise are preserved here
// verbatim so that a normalized archive round-trips byte-for-byte, including
// vendor extensions and profile fields the core never interprets. The bag
// centralises deep-copy and JSON handling so entity structs never leak shared
// state between snapshots.
package extension

import (
	"encoding/json"
	"reflect"
	"slices"
)

// Bag stores unrecognised entity properties keyed by their JSON property name.
// Values are JSON-compatible (string, bool, float64, []any, map[string]any)
// and are deep-copied on every read and write.
type Bag struct {
	payload map[string]any
}

// NewBag initialises an empty extension bag.
func NewBag() Bag {
	return Bag{payload: make(map[string]any)}
}

// FromRaw builds a bag from a JSON-compatible map, deep-copying every value.
func FromRaw(raw map[string]any) Bag {
	b := NewBag()
	for key, value := range raw {
		b.Set(key, value)
	}
	return b
}

func (b *Bag) ensurePayload() {
	if b.payload == nil {
		b.payload = make(map[string]any)
	}
}

// Set stores a property value, deep-copying it to shield the bag from
// external mutation.
func (b *Bag) Set(key string, value any) {
	if key == "" {
		return
	}
	b.ensurePayload()
	b.payload[key] = cloneValue(value)
}

// Remove deletes a property from the bag.
func (b *Bag) Remove(key string) {
	if b.payload == nil {
		return
	}
	delete(b.payload, key)
}

// Get retrieves a deep copy of a property value.
func (b Bag) Get(key string) (any, bool) {
	if b.payload == nil {
		return nil, false
	}
	value, ok := b.payload[key]
	if !ok {
		return nil, false
	}
	return cloneValue(value), true
}

// Keys returns the sorted property names present in the bag.
func (b Bag) Keys() []string {
	if b.payload == nil {
		return nil
	}
	keys := make([]string, 0, len(b.payload))
	for key := range b.payload {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Len reports the number of properties held.
func (b Bag) Len() int {
	return len(b.payload)
}

// Clone produces a deep copy of the bag and all nested values.
func (b Bag) Clone() Bag {
	if b.payload == nil {
		return Bag{}
	}
	clone := Bag{payload: make(map[string]any, len(b.payload))}
	for key, value := range b.payload {
		clone.payload[key] = cloneValue(value)
	}
	return clone
}

// Raw exposes a JSON-compatible copy of the bag contents.
func (b Bag) Raw() map[string]any {
	out := make(map[string]any, len(b.payload))
	for key, value := range b.payload {
		out[key] = cloneValue(value)
	}
	return out
}

// MarshalJSON implements json.Marshaler; the wire shape is a flat object.
func (b Bag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Raw())
}

// UnmarshalJSON populates the bag from a flat JSON object.
func (b *Bag) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = Bag{}
		return nil
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*b = FromRaw(wire)
	return nil
}

// CloneValue deep copies an arbitrary JSON-compatible value. Entity fields
// holding opaque JSON (annotation bodies, targets) use it to keep snapshots
// isolated from each other.
func CloneValue(value any) any {
	return cloneValue(value)
}

// cloneValue deep copies supported JSON-compatible values to prevent shared
// references between snapshots.
func cloneValue(value any) any {
	if value == nil {
		return nil
	}
	switch typed := value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64,
		json.Number:
		return typed
	}

	source := reflect.ValueOf(value)

	switch source.Kind() {
	case reflect.Map:
		if source.IsNil() || source.Type().Key().Kind() != reflect.String {
			return value
		}
		clone := reflect.MakeMapWithSize(source.Type(), source.Len())
		iter := source.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneIntoType(iter.Value(), source.Type().Elem()))
		}
		return clone.Interface()
	case reflect.Slice:
		if source.IsNil() {
			return value
		}
		clone := reflect.MakeSlice(source.Type(), source.Len(), source.Len())
		for i := 0; i < source.Len(); i++ {
			clone.Index(i).Set(cloneIntoType(source.Index(i), source.Type().Elem()))
		}
		return clone.Interface()
	case reflect.Array:
		clone := reflect.New(source.Type()).Elem()
		for i := 0; i < source.Len(); i++ {
			clone.Index(i).Set(cloneIntoType(source.Index(i), source.Type().Elem()))
		}
		return clone.Interface()
	default:
		return value
	}
}

// cloneIntoType deep copies the provided value and converts it to the target type.
func cloneIntoType(value reflect.Value, target reflect.Type) reflect.Value {
	if !value.IsValid() || (value.Kind() == reflect.Interface && value.IsNil()) {
		return reflect.Zero(target)
	}

	cloned := cloneValue(value.Interface())
	if cloned == nil {
		return reflect.Zero(target)
	}

	clonedValue := reflect.ValueOf(cloned)
	if !clonedValue.Type().AssignableTo(target) {
		if clonedValue.Type().ConvertibleTo(target) {
			clonedValue = clonedValue.Convert(target)
		} else {
			return value
		}
	}
	return clonedValue
}
