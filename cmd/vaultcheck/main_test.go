package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTree = `{
  "id": "top",
  "type": "Collection",
  "label": {"en": ["Archive"]},
  "members": ["m1"],
  "items": [
    {
      "id": "m1",
      "type": "Manifest",
      "items": [
        {"id": "c1", "type": "Canvas", "width": 100, "height": 80},
        {"id": "c2", "type": "Canvas"}
      ],
      "structures": [
        {"id": "r1", "type": "Range", "canvasIds": ["c1", "c2"]}
      ]
    }
  ]
}`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestCLIHappyPath(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := writeSample(t, sampleTree)

	code := cli([]string{"-input", path, "-stats", "-roundtrip"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "ok: 5 entities, root top") {
		t.Fatalf("missing summary: %s", out)
	}
	if !strings.Contains(out, "Manifest") || !strings.Contains(out, "Canvas") {
		t.Fatalf("missing stats: %s", out)
	}
	if !strings.Contains(out, "round-trip stable") {
		t.Fatalf("missing round-trip line: %s", out)
	}
}

func TestCLIMissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stderr.String(), "-input is required") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestCLIRejectsDuplicateIDs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := writeSample(t, `{
  "id": "top",
  "type": "Collection",
  "items": [
    {"id": "m1", "type": "Manifest"},
    {"id": "m1", "type": "Manifest"}
  ]
}`)
	if code := cli([]string{"-input", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, stdout = %s", code, stdout.String())
	}
	if !strings.Contains(stderr.String(), "m1") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestCLIPersistsToMemoryStore(t *testing.T) {
	t.Setenv("IIIFVAULT_STORAGE_DRIVER", "memory")
	var stdout, stderr bytes.Buffer
	path := writeSample(t, sampleTree)
	if code := cli([]string{"-input", path, "-persist"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "snapshot persisted") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestCLIExportsToMemoryBlobStore(t *testing.T) {
	t.Setenv("IIIFVAULT_BLOB_DRIVER", "memory")
	var stdout, stderr bytes.Buffer
	path := writeSample(t, sampleTree)
	if code := cli([]string{"-input", path, "-export"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "archived archives/top/") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}
