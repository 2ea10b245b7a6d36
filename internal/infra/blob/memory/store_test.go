package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"iiifvault/internal/blob/core"
)

func TestRoundTripAndCreateOnly(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.Put(ctx, "k1", strings.NewReader("hello"), core.PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k1", strings.NewReader("again"), core.PutOptions{}); err == nil {
		t.Fatalf("duplicate put should fail")
	}

	info, rc, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "hello" || info.ContentType != "text/plain" || info.Size != 5 {
		t.Fatalf("got %q %+v", body, info)
	}

	if _, _, err := store.Get(ctx, "absent"); err == nil {
		t.Fatalf("get absent should fail")
	}
}

func TestListSortedWithPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, key := range []string{"b/2", "a/1", "b/1"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "b/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "b/1" || infos[1].Key != "b/2" {
		t.Fatalf("list = %+v", infos)
	}
}

func TestPresignUnsupported(t *testing.T) {
	if _, err := NewStore().PresignURL(context.Background(), "k", core.SignedURLOptions{}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
