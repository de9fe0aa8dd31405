package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/motorctl/internal/control"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

var ErrNotFound = errors.New("storage: session not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// SessionMetadata describes one recorded motor response.
type SessionMetadata struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	Motor     string             `json:"motor"`
	Timestamp time.Time          `json:"timestamp"`
	Clock     string             `json:"clock,omitempty"`
	Setpoint  float64            `json:"setpoint"`
	Kp        float64            `json:"kp"`
	Ki        float64            `json:"ki"`
	PeriodMs  float64            `json:"period_ms"`
	Policy    string             `json:"policy,omitempty"`
	Samples   int                `json:"samples"`
	Dropped   uint64             `json:"dropped"`
	Settled   bool               `json:"settled"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes a session and returns its ID, generating one if meta.ID is
// empty.
func (s *Store) Save(meta SessionMetadata, samples []control.Sample) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Samples = len(samples)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeMetadata(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, samplesFile), samples); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeMetadata(path string, meta SessionMetadata) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
}

func writeSamples(path string, samples []control.Sample) error {
	return writeFile(path, func(f io.Writer) error {
		w := csv.NewWriter(f)
		if err := w.Write([]string{"offset_ms", "value"}); err != nil {
			return err
		}
		for _, smp := range samples {
			row := []string{
				strconv.FormatFloat(float64(smp.Offset)/float64(time.Millisecond), 'f', -1, 64),
				strconv.FormatFloat(smp.Value, 'f', -1, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// writeFile creates path and runs fill on it. A failed close is returned
// like any other write error.
func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable session, newest first.
func (s *Store) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]SessionMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(id string) (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", id, err)
	}
	return &meta, nil
}

// LoadSamples reads a session's samples. Rows that do not parse are skipped.
func (s *Store) LoadSamples(id string) ([]control.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, id, samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []control.Sample{}, nil
	}

	out := make([]control.Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		ms, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		out = append(out, control.Sample{
			Offset: time.Duration(ms * float64(time.Millisecond)),
			Value:  v,
		})
	}
	return out, nil
}
