package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.sql")
	content := []byte("SELECT 1")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	if got := LoadFixture(t, path); string(got) != string(content) {
		t.Errorf("expected %q, got %q", content, got)
	}
}

func TestCompareWithGolden_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.golden")

	CompareWithGolden(t, path, []byte("first"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected golden file to be created: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("expected golden content %q, got %q", "first", data)
	}

	// Matching content passes.
	CompareWithGolden(t, path, []byte("first"))
}

func TestCompareWithGolden_Update(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.golden")
	WriteGolden(t, path, []byte("old"))

	t.Setenv(UpdateGoldenEnv, "1")
	CompareWithGolden(t, path, []byte("new"))

	if got := LoadFixture(t, path); string(got) != "new" {
		t.Errorf("expected golden file to be rewritten, got %q", got)
	}
}

func TestGoldenPath(t *testing.T) {
	want := filepath.Join("testdata", "golden", "keys.golden")
	if got := GoldenPath("keys.golden"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
