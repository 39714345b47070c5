package roi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ScenarioFile is a named collection of calculator inputs for one variant.
type ScenarioFile struct {
	Version     string     `json:"version"`
	Variant     string     `json:"variant"`
	LastUpdated string     `json:"lastUpdated"`
	Scenarios   []Scenario `json:"scenarios"`
}

type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Inputs      Values `json:"inputs"`
}

// NewScenarioFile returns an empty file for the named variant.
func NewScenarioFile(variant string) *ScenarioFile {
	return &ScenarioFile{
		Version:     "1.0.0",
		Variant:     variant,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Scenarios:   []Scenario{},
	}
}

func LoadScenarios(path string) (*ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ScenarioFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	if f.Variant == "" {
		f.Variant = Monetary.Name
	}
	return &f, nil
}

func SaveScenarios(f *ScenarioFile, path string) error {
	f.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenarios: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Add appends a scenario, rejecting duplicate names.
func (f *ScenarioFile) Add(s Scenario) error {
	for _, existing := range f.Scenarios {
		if existing.Name == s.Name {
			return fmt.Errorf("scenario %q already exists", s.Name)
		}
	}
	f.Scenarios = append(f.Scenarios, s)
	return nil
}

// Validate checks the variant name, scenario names and every input range.
func (f *ScenarioFile) Validate() error {
	v, err := Lookup(f.Variant)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(f.Scenarios))
	for i, s := range f.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("scenario %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate scenario name %q", s.Name)
		}
		seen[s.Name] = true
		for name := range s.Inputs {
			if _, ok := v.Field(name); !ok {
				return fmt.Errorf("scenario %q: unknown input %q for variant %s", s.Name, name, v.Name)
			}
		}
		if res := v.Validate(s.Inputs); !res.Valid {
			for _, fld := range v.Fields {
				if msg, ok := res.Errors[fld.Name]; ok {
					return fmt.Errorf("scenario %q: %s: %s", s.Name, fld.Name, msg)
				}
			}
		}
	}
	return nil
}
