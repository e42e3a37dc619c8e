// Package metadata defines the fixed set of descriptive fields attached to
// every row of a merged table.
package metadata

import "strings"

// Field keys, in output column order.
const (
	ProjectName = "project_name"
	Department  = "department"
	Analyst     = "analyst"
	ReportDate  = "report_date"
	Version     = "version"
)

// Keys lists the metadata keys in their fixed order.
var Keys = []string{ProjectName, Department, Analyst, ReportDate, Version}

// Labels are the human-readable field names used in messages.
var Labels = map[string]string{
	ProjectName: "Project Name",
	Department:  "Department",
	Analyst:     "Analyst",
	ReportDate:  "Report Date",
	Version:     "Version",
}

// IsKey reports whether name equals a metadata key, ignoring case.
func IsKey(name string) bool {
	for _, k := range Keys {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Record holds one trimmed value per key. Build it with New so that values
// are trimmed and unknown keys are dropped.
type Record struct {
	values map[string]string
}

// New builds a Record from raw values. Missing keys are stored as "".
func New(raw map[string]string) Record {
	values := make(map[string]string, len(Keys))
	for _, k := range Keys {
		values[k] = strings.TrimSpace(raw[k])
	}
	return Record{values: values}
}

// Get returns the value for key.
func (r Record) Get(key string) string {
	return r.values[key]
}

// Map returns a copy of the record's values.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		out[k] = r.values[k]
	}
	return out
}
