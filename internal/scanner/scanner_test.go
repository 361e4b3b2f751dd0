package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func relPaths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.ToSlash(f.RelPath)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDiscover_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg")
	touch(t, dir, "b.PNG")
	touch(t, dir, "c.txt")
	touch(t, dir, "noext")
	touch(t, dir, "sub/d.JpEg")
	touch(t, dir, "sub/deeper/e.webp")
	touch(t, dir, "sub/deeper/f.mp4")
	if err := os.MkdirAll(filepath.Join(dir, "folder.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := New(dir, nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{"a.jpg", "b.PNG", "sub/d.JpEg", "sub/deeper/e.webp"}
	if got := relPaths(files); !equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Errorf("Path %q is not absolute", f.Path)
		}
		if f.Size != 1 {
			t.Errorf("Size = %d, want 1", f.Size)
		}
	}
}

func TestDiscover_AllSupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range SupportedExtensions {
		touch(t, dir, "file."+ext)
	}
	touch(t, dir, "file.heic")

	files, err := New(dir, nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != len(SupportedExtensions) {
		t.Errorf("got %d files, want %d", len(files), len(SupportedExtensions))
	}
}

func TestDiscover_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg")
	touch(t, dir, "b.png")

	files, err := New(dir, []string{".PNG"}).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := relPaths(files); !equal(got, []string{"b.png"}) {
		t.Errorf("got %v", got)
	}
}

func TestDiscover_ExcludesOutputInsideInput(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg")
	touch(t, dir, "out/a.jpg")

	s := New(dir, nil)
	s.Exclude(filepath.Join(dir, "out"))

	files, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := relPaths(files); !equal(got, []string{"a.jpg"}) {
		t.Errorf("got %v", got)
	}
}

func TestExcluded_RelativePaths(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	touch(t, ".", "in/a.jpg")
	touch(t, ".", "in/out/a.jpg")

	s := New("in", nil)
	s.Exclude(filepath.Join("in", "out"))

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("in", "out", "x.jpg"), true},
		{filepath.Join("in", "out"), true},
		{filepath.Join(".", "in", "out", "sub", "y.jpg"), true},
		{filepath.Join("in", "a.jpg"), false},
		{filepath.Join("in", "outside.jpg"), false},
	}
	for _, tt := range tests {
		if got := s.Excluded(tt.path); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	files, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := relPaths(files); !equal(got, []string{"a.jpg"}) {
		t.Errorf("got %v", got)
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil).Discover(context.Background())
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDiscover_Cancelled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(dir, nil).Discover(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		path, root string
		want       bool
	}{
		{"/a/b", "/a", true},
		{"/a", "/a", true},
		{"/ab", "/a", false},
		{"/x/y", "/a", false},
		{"/a/..b", "/a", true},
	}
	for _, tt := range tests {
		if got := IsWithin(filepath.FromSlash(tt.path), filepath.FromSlash(tt.root)); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.path, tt.root, got, tt.want)
		}
	}
}

func TestComputeSHA256(t *testing.T) {
	path := touch(t, t.TempDir(), "a.jpg")

	got, err := ComputeSHA256(path)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("x")
	want := "2d711642b726b04401627ca9fbac32f5c8530fb1903cc4db02258717921a4881"
	if got != want {
		t.Errorf("ComputeSHA256 = %s, want %s", got, want)
	}
}
