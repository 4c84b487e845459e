package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestForEachFileIndexed_PreservesOrder(t *testing.T) {
	tmpDir := t.TempDir()

	files := make([]string, 100)
	for i := 0; i < 100; i++ {
		files[i] = createTestFile(t, tmpDir, fmt.Sprintf("frag%03d.dot", i), "digraph {}")
	}

	results, errs := ForEachFileIndexed(context.Background(), files, 4, func(path string) (string, error) {
		return filepath.Base(path), nil
	}, nil)

	if errs != nil {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(results) != len(files) {
		t.Fatalf("Expected %d results, got %d", len(files), len(results))
	}
	for i, r := range results {
		expected := fmt.Sprintf("frag%03d.dot", i)
		if r != expected {
			t.Errorf("Result[%d] = %q, want %q", i, r, expected)
		}
	}
}

func TestForEachFileIndexed_CollectsErrors(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{
		createTestFile(t, tmpDir, "a.dot", "x"),
		filepath.Join(tmpDir, "missing.dot"),
		createTestFile(t, tmpDir, "c.dot", "y"),
	}

	results, errs := ForEachFileIndexed(context.Background(), files, 0, func(path string) ([]byte, error) {
		return os.ReadFile(path)
	}, nil)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if string(results[0]) != "x" || string(results[1]) != "y" {
		t.Errorf("Unexpected result order: %q %q", results[0], results[1])
	}
	if !errs.HasErrors() {
		t.Fatal("Expected errors to be collected")
	}
	sorted := errs.Sorted()
	if len(sorted) != 1 || filepath.Base(sorted[0].Path) != "missing.dot" {
		t.Errorf("Unexpected errors: %v", sorted)
	}
}

func TestForEachFileIndexed_Progress(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{
		createTestFile(t, tmpDir, "a.dot", ""),
		createTestFile(t, tmpDir, "b.dot", ""),
		createTestFile(t, tmpDir, "c.dot", ""),
	}

	var ticks atomic.Int32
	_, _ = ForEachFileIndexed(context.Background(), files, 2, func(path string) (int, error) {
		if filepath.Base(path) == "b.dot" {
			return 0, errors.New("boom")
		}
		return 1, nil
	}, func() { ticks.Add(1) })

	if got := ticks.Load(); got != 3 {
		t.Errorf("progress ticks = %d, want 3", got)
	}
}

func TestForEachFileIndexed_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{createTestFile(t, tmpDir, "a.dot", "")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, errs := ForEachFileIndexed(ctx, files, 1, func(path string) (string, error) {
		return path, nil
	}, nil)
	if len(results) != 0 {
		t.Errorf("Expected no results after cancellation, got %d", len(results))
	}
	if !errs.HasErrors() {
		t.Error("Expected cancellation error")
	}
}

func TestForEachFileIndexed_Empty(t *testing.T) {
	results, errs := ForEachFileIndexed(context.Background(), nil, 0, func(path string) (string, error) {
		return path, nil
	}, nil)
	if results != nil || errs != nil {
		t.Errorf("Expected nil results and errors, got %v %v", results, errs)
	}
}

func TestProcessingErrors_Error(t *testing.T) {
	e := &ProcessingErrors{}
	if e.Error() != "no errors" {
		t.Errorf("Error() = %q", e.Error())
	}
	e.Add("a.dot", errors.New("bad"))
	if e.Error() != "a.dot: bad" {
		t.Errorf("Error() = %q", e.Error())
	}
	e.Add("b.dot", errors.New("worse"))
	if e.Error() != "2 files failed to process (first: a.dot: bad)" {
		t.Errorf("Error() = %q", e.Error())
	}
}
