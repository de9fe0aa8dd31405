package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/motorctl/internal/control"
)

type ExportData struct {
	Session SessionMetadata `json:"session"`
	Times   []float64       `json:"times_ms"`
	Values  []float64       `json:"values"`
}

// ExportJSON writes a session and its samples as one JSON document.
func ExportJSON(w io.Writer, meta SessionMetadata, samples []control.Sample) error {
	times, values := control.Series(samples)
	data := ExportData{
		Session: meta,
		Times:   times,
		Values:  values,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSONFile(path string, meta SessionMetadata, samples []control.Sample) error {
	return writeFile(path, func(w io.Writer) error {
		return ExportJSON(w, meta, samples)
	})
}

// ExportLines writes samples in the diagnostic stream format, one per line.
func ExportLines(w io.Writer, samples []control.Sample) error {
	for _, s := range samples {
		if _, err := io.WriteString(w, control.FormatSample(s)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func ExportLinesFile(path string, samples []control.Sample) error {
	return writeFile(path, func(w io.Writer) error {
		return ExportLines(w, samples)
	})
}
