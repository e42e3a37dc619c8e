// Package batch runs several independent merge jobs described by a TOML
// manifest.
//
//	parallel = 2
//
//	[metadata]
//	department = "Finance"
//
//	[[job]]
//	name   = "q1"
//	dir    = "inputs/q1"
//	output = "out/q1.xlsx"
//	[job.metadata]
//	project_name = "Quarterly"
//	analyst      = "J. Doe"
//	report_date  = "2024-03-31"
//	version      = "1"
//
// Relative paths are resolved against the manifest's directory. Manifest
// level metadata fills fields a job leaves out.
package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ryabkov82/sheetmerge/internal/metadata"
)

// Manifest is a decoded batch file.
type Manifest struct {
	Parallel int               `toml:"parallel"`
	Metadata map[string]string `toml:"metadata"`
	Jobs     []Job             `toml:"job"`
}

// Job is one merge: explicit inputs, every spreadsheet under Dir, or both.
type Job struct {
	Name     string            `toml:"name"`
	Inputs   []string          `toml:"inputs"`
	Dir      string            `toml:"dir"`
	Output   string            `toml:"output"`
	Metadata map[string]string `toml:"metadata"`
}

// Record layers the job's metadata over defaults, later maps first. Blank
// values never override a value set by an earlier layer.
func (j Job) Record(defaults ...map[string]string) metadata.Record {
	raw := make(map[string]string, len(metadata.Keys))
	for _, layer := range append(defaults, j.Metadata) {
		for k, v := range layer {
			if strings.TrimSpace(v) != "" {
				raw[strings.ToLower(k)] = v
			}
		}
	}
	return metadata.New(raw)
}

// LoadManifest decodes path, resolves relative paths and validates the
// result.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	m.resolve(filepath.Dir(path))
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range m.Jobs {
		j := &m.Jobs[i]
		for k, in := range j.Inputs {
			j.Inputs[k] = abs(in)
		}
		j.Dir = abs(j.Dir)
		j.Output = abs(j.Output)
		if j.Name == "" {
			j.Name = fmt.Sprintf("job %d", i+1)
		}
	}
}

// Validate reports every structural problem at once. Per-job file and
// metadata checks happen when the job runs.
func (m *Manifest) Validate() error {
	var errs []error

	if m.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must not be negative, got %d", m.Parallel))
	}
	for k := range m.Metadata {
		if !metadata.IsKey(k) {
			errs = append(errs, fmt.Errorf("unknown metadata field %q", k))
		}
	}
	if len(m.Jobs) == 0 {
		errs = append(errs, errors.New("manifest has no jobs"))
	}

	names := make(map[string]bool)
	outputs := make(map[string]string)
	for _, j := range m.Jobs {
		if names[j.Name] {
			errs = append(errs, fmt.Errorf("job name %q is used twice", j.Name))
		}
		names[j.Name] = true

		if len(j.Inputs) == 0 && j.Dir == "" {
			errs = append(errs, fmt.Errorf("%s: inputs or dir is required", j.Name))
		}
		if j.Output == "" {
			errs = append(errs, fmt.Errorf("%s: output is required", j.Name))
		} else {
			key := strings.ToLower(filepath.Clean(j.Output))
			if other, ok := outputs[key]; ok {
				errs = append(errs, fmt.Errorf("%s: output %s is also written by %s", j.Name, j.Output, other))
			}
			outputs[key] = j.Name
		}
		for k := range j.Metadata {
			if !metadata.IsKey(k) {
				errs = append(errs, fmt.Errorf("%s: unknown metadata field %q", j.Name, k))
			}
		}
	}
	return errors.Join(errs...)
}
