package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"iiifvault/internal/blob/core"
)

func TestMockedPutGetList(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()

	if store.Driver() != core.DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}

	info, err := store.Put(ctx, "archives/top/1.json", strings.NewReader(`{"id":"top"}`),
		core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size == 0 {
		t.Fatalf("info = %+v", info)
	}

	if _, err := store.Put(ctx, "archives/top/1.json", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("duplicate put should fail")
	}

	got, rc, err := store.Get(ctx, "archives/top/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"id":"top"}` || got.ContentType != "application/json" {
		t.Fatalf("got %q %+v", body, got)
	}

	if _, err := store.Put(ctx, "archives/other/1.json", strings.NewReader("y"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	infos, err := store.List(ctx, "archives/top/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "archives/top/1.json" {
		t.Fatalf("list = %+v", infos)
	}

	ok, err := store.Delete(ctx, "archives/top/1.json")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := store.Head(ctx, "archives/top/1.json"); err == nil {
		t.Fatalf("head after delete should fail")
	}
}

func TestNewStoreRequiresBucket(t *testing.T) {
	if _, err := NewStore(context.Background(), Config{}); err == nil {
		t.Fatalf("missing bucket should fail")
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("IIIFVAULT_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("missing bucket env should fail")
	}
}
