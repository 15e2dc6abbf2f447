package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"voiceclip/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<62); result.Passed {
		t.Fatal("expected failure with an impossible minimum")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckReference(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckReference(cfg.Paths.ReferencePath); result.Passed {
		t.Fatal("expected failure before the reference exists")
	}
	cfg = testsupport.NewConfig(t, testsupport.WithReference(1, 0, 0))
	if result := CheckReference(cfg.Paths.ReferencePath); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Options{}); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithReference(0, 1))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, Options{Reference: true, Transcription: true})
	// work, output, state, space, ffmpeg, uvx, reference
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Name == "Work directory space" {
			continue
		}
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_ReportsMissingDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	results := RunAll(context.Background(), cfg, Options{})
	failed := Failed(results)
	if len(failed) == 0 {
		t.Fatal("expected failures before directories exist")
	}
	for _, r := range failed {
		if r.Name == "FFmpeg" || r.Name == "uvx" {
			t.Fatalf("stubbed binary %q should pass", r.Name)
		}
	}
}
