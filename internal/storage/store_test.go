package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/motorctl/internal/control"
)

func testSamples() []control.Sample {
	return []control.Sample{
		{Offset: 0, Value: 0},
		{Offset: 10 * time.Millisecond, Value: 1800.5},
		{Offset: 20 * time.Millisecond, Value: 3600},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := SessionMetadata{
		Source:   "preset:dual",
		Motor:    "motor_1",
		Setpoint: 36000,
		Kp:       0.2,
		PeriodMs: 10,
		Metrics:  map[string]float64{"iae": 1.5},
	}
	id, err := st.Save(meta, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected uuid session id, got %q", id)
	}

	got, err := st.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Motor != "motor_1" || got.Setpoint != 36000 {
		t.Errorf("unexpected metadata %+v", got)
	}
	if got.Samples != 3 {
		t.Errorf("expected 3 samples recorded, got %d", got.Samples)
	}
	if got.Metrics["iae"] != 1.5 {
		t.Errorf("expected iae 1.5, got %f", got.Metrics["iae"])
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	samples, err := st.LoadSamples(id)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[1] != testSamples()[1] {
		t.Errorf("expected %+v, got %+v", testSamples()[1], samples[1])
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	old := time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC)
	if _, err := st.Save(SessionMetadata{ID: "old", Timestamp: old}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Save(SessionMetadata{ID: "new", Timestamp: old.Add(time.Hour)}, nil); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" {
		t.Errorf("expected newest first, got %s", runs[0].ID)
	}
}

func TestStoreMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
	if _, err := st.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.LoadSamples("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	id, err := st.Save(SessionMetadata{Motor: "motor_1"}, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, id)
	if _, err := os.Stat(filepath.Join(runDir, "metadata.json")); os.IsNotExist(err) {
		t.Error("metadata.json not created")
	}
	data, err := os.ReadFile(filepath.Join(runDir, "samples.csv"))
	if err != nil {
		t.Fatalf("samples.csv not created: %v", err)
	}
	want := "offset_ms,value\n0,0\n10,1800.5\n20,3600\n"
	if string(data) != want {
		t.Errorf("unexpected csv:\n%s", data)
	}
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, SessionMetadata{ID: "x", Motor: "motor_1"}, testSamples()); err != nil {
		t.Fatal(err)
	}
	var got ExportData
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Session.ID != "x" || len(got.Times) != 3 || got.Times[2] != 20 {
		t.Errorf("unexpected export %+v", got)
	}

	buf.Reset()
	if err := ExportLines(&buf, testSamples()); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "0,0\n10,1800.5\n20,3600\n" {
		t.Errorf("unexpected lines %q", buf.String())
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	if err := ExportJSONFile(path, SessionMetadata{ID: "y"}, nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Contains(data, []byte(`"id": "y"`)) {
		t.Errorf("unexpected json file %q (%v)", data, err)
	}

	path = filepath.Join(dir, "out.txt")
	if err := ExportLinesFile(path, testSamples()); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(path); string(data) != "0,0\n10,1800.5\n20,3600\n" {
		t.Errorf("unexpected lines file %q", data)
	}
}

func TestWriteFileReportsErrors(t *testing.T) {
	boom := errors.New("disk full")
	path := filepath.Join(t.TempDir(), "x")
	if err := writeFile(path, func(io.Writer) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected fill error, got %v", err)
	}
	if err := writeFile(filepath.Join(t.TempDir(), "missing", "x"), func(io.Writer) error { return nil }); err == nil {
		t.Error("expected create error")
	}
	if err := ExportJSONFile(filepath.Join(t.TempDir(), "missing", "x.json"), SessionMetadata{}, nil); err == nil {
		t.Error("expected export to surface the create error")
	}
}
