package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"terrarisk/internal/types"
)

func TestDiskStoreCreatesRootAndWritesFlatFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "artifacts")
	store := NewDiskStore(root)
	ctx := context.Background()

	name := FileName("run-1", "report", "pdf")
	if name != "run-1_report.pdf" {
		t.Fatalf("unexpected file name %q", name)
	}
	if err := store.Put(ctx, "run-1", name, []byte("hello")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("unexpected content %q", raw)
	}
	if uri := store.URI("run-1", name); uri != filepath.Join(root, name) || !filepath.IsAbs(uri) {
		t.Fatalf("unexpected uri %q", uri)
	}
}

func TestDiskStorePutIsExclusive(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	ctx := context.Background()
	if err := store.Put(ctx, "r", "r_layers.geojson", []byte("a")); err != nil {
		t.Fatalf("first put failed: %v", err)
	}
	err := store.Put(ctx, "r", "r_layers.geojson", []byte("b"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	raw, _ := store.Get(ctx, "r", "r_layers.geojson")
	if string(raw) != "a" {
		t.Fatalf("existing artifact was overwritten: %q", raw)
	}
}

func TestDiskStoreRejectsUnnamespacedNames(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	ctx := context.Background()
	cases := []struct{ runID, name string }{
		{"", "x_report.pdf"},
		{"r", ""},
		{"r", "other_report.pdf"},
		{"r", "r_../escape.pdf"},
		{"../r", "../r_report.pdf"},
	}
	for _, tc := range cases {
		if err := store.Put(ctx, tc.runID, tc.name, []byte("x")); err == nil {
			t.Fatalf("expected error for run=%q name=%q", tc.runID, tc.name)
		}
	}
}

func TestDiskStoreListAndMissing(t *testing.T) {
	store := NewDiskStore(filepath.Join(t.TempDir(), "absent"))
	ctx := context.Background()

	list, err := store.List(ctx, "r")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list for missing root, got %v %v", list, err)
	}
	if _, err := store.Get(ctx, "r", "r_report.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, n := range []string{"r_report.pdf", "r_layers.geojson", "s_report.pdf"} {
		runID := n[:1]
		if err := store.Put(ctx, runID, n, []byte(n)); err != nil {
			t.Fatalf("put %s: %v", n, err)
		}
	}
	list, err = store.List(ctx, "r")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if want := []string{"r_layers.geojson", "r_report.pdf"}; !reflect.DeepEqual(list, want) {
		t.Fatalf("unexpected list %v", list)
	}
}

func TestDiskStoreUnwritableRoot(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	store := NewDiskStore(filepath.Join(blocker, "artifacts"))
	if err := store.Put(context.Background(), "r", "r_report.pdf", []byte("x")); err == nil {
		t.Fatalf("expected error when root cannot be created")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	ctx := context.Background()
	content := []byte("portfolio_id,county_fips,hazard,expected_annual_loss\n")
	if err := store.Put(ctx, "r", "r_portfolio_diff.csv", content); err != nil {
		t.Fatalf("put: %v", err)
	}
	a := types.Artifact{URI: store.URI("r", "r_portfolio_diff.csv"), Type: "text/csv", Hash: HashBytes(content)}
	if err := Verify(ctx, store, "r", a); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	a.Hash = HashBytes([]byte("tampered"))
	if err := Verify(ctx, store, "r", a); err == nil {
		t.Fatalf("expected hash mismatch")
	}
}

func TestNameFromURI(t *testing.T) {
	cases := map[string]string{
		"/tmp/a/r_report.pdf":                      "r_report.pdf",
		"s3://bucket/r_layers.geojson":             "r_layers.geojson",
		"mem://r/r_portfolio_diff.csv":             "r_portfolio_diff.csv",
		"postgres://artifact_files/r/r_report.pdf": "r_report.pdf",
	}
	for in, want := range cases {
		if got := NameFromURI(in); got != want {
			t.Fatalf("NameFromURI(%q) = %q, want %q", in, got, want)
		}
	}
}
