package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-protocol/protocol"
)

// Artifact file names written by Persist.
const (
	ResultsFile       = "results.json"
	VisualizationFile = "visualization.json"
	ProtocolFile      = "protocol.yaml"
)

// WriteFile stores doc at path as indented JSON. The file is written to a
// temporary sibling and renamed, so readers never see a partial document.
func WriteFile(path string, doc *ResultDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: encode results: %w", err)
	}

	return writeAtomic(path, append(data, '\n'))
}

// ReadFile loads a document written by WriteFile.
func ReadFile(path string) (*ResultDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	defer f.Close()

	var doc ResultDocument

	err = json.NewDecoder(f).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("engine: decode %s: %w", path, err)
	}

	return &doc, nil
}

// WriteVisualization stores vis at path.
func WriteVisualization(path string, vis *VisualizationDocument) error {
	data, err := json.MarshalIndent(vis, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: encode visualization: %w", err)
	}

	return writeAtomic(path, append(data, '\n'))
}

// Persist writes the artifacts selected by the plan's output block into
// dir and returns the written paths.
func Persist(dir string, plan *protocol.Plan, doc *ResultDocument, vis *VisualizationDocument) ([]string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	var written []string

	if plan.Output.SaveRawData {
		path := filepath.Join(dir, ResultsFile)

		err := WriteFile(path, doc)
		if err != nil {
			return written, err
		}

		written = append(written, path)
	}

	if plan.Output.SaveVisualization && vis != nil {
		path := filepath.Join(dir, VisualizationFile)

		err := WriteVisualization(path, vis)
		if err != nil {
			return written, err
		}

		written = append(written, path)
	}

	if plan.Output.SaveConfig && len(plan.Source) > 0 {
		path := filepath.Join(dir, ProtocolFile)

		err := writeAtomic(path, plan.Source)
		if err != nil {
			return written, err
		}

		written = append(written, path)
	}

	return written, nil
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	_, err = tmp.Write(data)
	if err != nil {
		return fmt.Errorf("engine: write %s: %w", path, err)
	}

	err = tmp.Sync()
	if err != nil {
		return fmt.Errorf("engine: sync %s: %w", path, err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("engine: close %s: %w", path, err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("engine: rename %s: %w", path, err)
	}

	return nil
}
