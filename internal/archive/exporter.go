// Package archive writes denormalized vault trees to blob storage and
// appends an audit trail of committed actions.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"iiifvault/internal/blob"
	"iiifvault/internal/vault"
	"iiifvault/pkg/iiif"
)

const keyTimeLayout = "20060102T150405.000Z"

// Exporter persists immutable JSON exports of a vault under
// archives/<root id>/<timestamp>.json. Exports never overwrite each other;
// the blob layer rejects duplicate keys.
type Exporter struct {
	store blob.Store
	nowFn func() time.Time
}

// ExporterOption customizes an Exporter.
type ExporterOption func(*Exporter)

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) { e.nowFn = now }
}

// NewExporter returns an Exporter writing to store.
func NewExporter(store blob.Store, opts ...ExporterOption) *Exporter {
	e := &Exporter{store: store, nowFn: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export denormalizes s and writes it as an indented JSON document.
func (e *Exporter) Export(ctx context.Context, s *vault.State) (blob.Info, error) {
	root, err := vault.Denormalize(s)
	if err != nil {
		return blob.Info{}, err
	}
	if root == nil {
		return blob.Info{}, fmt.Errorf("archive: empty vault has nothing to export")
	}
	raw, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	key := e.keyFor(root.EntityID())
	return e.store.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"root":     root.EntityID(),
			"entities": strconv.Itoa(s.Len()),
		},
	})
}

// Import loads a previously exported document and normalizes it back into
// a vault snapshot.
func (e *Exporter) Import(ctx context.Context, key string) (*vault.State, error) {
	_, rc, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	root, err := iiif.DecodeEntity(raw)
	if err != nil {
		return nil, err
	}
	return vault.Normalize(root)
}

// List returns the archived exports for rootID, oldest first. The timestamp
// key layout makes lexicographic order chronological.
func (e *Exporter) List(ctx context.Context, rootID string) ([]blob.Info, error) {
	return e.store.List(ctx, "archives/"+rootID+"/")
}

func (e *Exporter) keyFor(rootID string) string {
	return fmt.Sprintf("archives/%s/%s.json", rootID, e.nowFn().UTC().Format(keyTimeLayout))
}
