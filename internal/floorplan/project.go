package floorplan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/evacsim/internal/people"
)

// ProjectVersion is written into exported projects.
const ProjectVersion = "1.0"

const maxProjectSize = 16 * 1024 * 1024

// Project is the exchange format for a building and its occupants.
type Project struct {
	Floors     []Floor         `json:"floors"`
	People     []people.Person `json:"people"`
	Version    string          `json:"version,omitempty"`
	ExportedAt *time.Time      `json:"exportedAt,omitempty"`
}

// Validate checks floors and people for structural problems.
func (p *Project) Validate() error {
	if err := ValidateFloors(p.Floors); err != nil {
		return err
	}
	return people.ValidateAll(p.People)
}

// ParseProject decodes and validates a project from r. Missing floors or
// people decode as empty slices.
func ParseProject(r io.Reader) (*Project, error) {
	var p Project
	dec := json.NewDecoder(io.LimitReader(r, maxProjectSize))
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse project JSON: %w", err)
	}
	if p.Floors == nil {
		p.Floors = []Floor{}
	}
	if p.People == nil {
		p.People = []people.Person{}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	return &p, nil
}

// LoadProject reads a project JSON file.
func LoadProject(path string) (*Project, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("project file must have .json extension, got %q", ext)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}
	defer f.Close()
	return ParseProject(f)
}

// WriteProject encodes p to w, stamping the version and export time.
func WriteProject(w io.Writer, p *Project, now time.Time) error {
	out := *p
	out.Version = ProjectVersion
	out.ExportedAt = &now
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	return nil
}
