package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testResult(runID string) *RunResult {
	return &RunResult{
		RunID: runID,
		Config: RunConfig{
			LeftPath:            "left.png",
			RightPath:           "right.png",
			BlockSize:           11,
			MaxDisparity:        64,
			UniquenessThreshold: 15,
			PreFilter:           true,
			InterpolateBad:      true,
		},
		Width:              320,
		Height:             240,
		MinDisparity:       0,
		MaxDisparity:       48,
		UnreliableFraction: 0.12,
		ElapsedMS:          250,
		Timestamp:          time.Now(),
	}
}

func TestFSStore_SaveLoadRoundTrip(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	want := testResult("run-1")
	if err := fsStore.SaveRun("run-1", want); err != nil {
		t.Fatal(err)
	}

	got, err := fsStore.LoadRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != want.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, want.RunID)
	}
	if got.Config != want.Config {
		t.Errorf("Config = %+v, want %+v", got.Config, want.Config)
	}
	if got.UnreliableFraction != want.UnreliableFraction {
		t.Errorf("UnreliableFraction = %v, want %v", got.UnreliableFraction, want.UnreliableFraction)
	}
}

func TestFSStore_SaveOverwrites(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first := testResult("run-1")
	first.ElapsedMS = 100
	if err := fsStore.SaveRun("run-1", first); err != nil {
		t.Fatal(err)
	}

	second := testResult("run-1")
	second.ElapsedMS = 999
	if err := fsStore.SaveRun("run-1", second); err != nil {
		t.Fatal(err)
	}

	got, err := fsStore.LoadRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ElapsedMS != 999 {
		t.Errorf("ElapsedMS = %d, want 999 after overwrite", got.ElapsedMS)
	}
}

func TestFSStore_LoadMissing(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = fsStore.LoadRun("absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFSStore_ListRuns(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	infos, err := fsStore.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected empty listing, got %d", len(infos))
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := fsStore.SaveRun(id, testResult(id)); err != nil {
			t.Fatal(err)
		}
	}

	infos, err = fsStore.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Fatalf("listed %d runs, want 3", len(infos))
	}
}

func TestFSStore_ListSkipsCorrupted(t *testing.T) {
	base := t.TempDir()
	fsStore, err := NewFSStore(base)
	if err != nil {
		t.Fatal(err)
	}

	if err := fsStore.SaveRun("good", testResult("good")); err != nil {
		t.Fatal(err)
	}

	badDir := filepath.Join(base, "runs", "bad")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "result.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err := fsStore.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].RunID != "good" {
		t.Errorf("listing = %+v, want only the good run", infos)
	}
}

func TestFSStore_DeleteRun(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := fsStore.SaveRun("run-1", testResult("run-1")); err != nil {
		t.Fatal(err)
	}

	// An artifact next to result.json must go with the run.
	dir, err := fsStore.RunDir("run-1")
	if err != nil {
		t.Fatal(err)
	}
	artifact := filepath.Join(dir, "disparity.png")
	if err := os.WriteFile(artifact, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := fsStore.DeleteRun("run-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("artifact survived deletion")
	}
	if err := fsStore.DeleteRun("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestFSStore_EmptyRunID(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := fsStore.SaveRun("", testResult("")); err == nil {
		t.Error("SaveRun with empty ID should fail")
	}
	if _, err := fsStore.LoadRun(""); err == nil {
		t.Error("LoadRun with empty ID should fail")
	}
	if err := fsStore.DeleteRun(""); err == nil {
		t.Error("DeleteRun with empty ID should fail")
	}
}

func TestRunResult_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RunResult)
		valid  bool
	}{
		{"valid", func(r *RunResult) {}, true},
		{"empty id", func(r *RunResult) { r.RunID = "" }, false},
		{"missing left", func(r *RunResult) { r.Config.LeftPath = "" }, false},
		{"missing right", func(r *RunResult) { r.Config.RightPath = "" }, false},
		{"even block", func(r *RunResult) { r.Config.BlockSize = 10 }, false},
		{"negative disparity", func(r *RunResult) { r.Config.MaxDisparity = -1 }, false},
		{"zero width", func(r *RunResult) { r.Width = 0 }, false},
		{"bad fraction", func(r *RunResult) { r.UnreliableFraction = 1.5 }, false},
		{"zero timestamp", func(r *RunResult) { r.Timestamp = time.Time{} }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := testResult("run-1")
			tc.mutate(r)
			err := r.Validate()
			if tc.valid && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tc.valid && err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestRunResult_ToInfo(t *testing.T) {
	r := testResult("run-9")
	info := r.ToInfo()
	if info.RunID != "run-9" || info.BlockSize != 11 || info.MaxDisparity != 64 {
		t.Errorf("ToInfo() = %+v, lost fields", info)
	}
}
