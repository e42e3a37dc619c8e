package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/metadata"
	"github.com/ryabkov82/sheetmerge/internal/pipeline"
	"github.com/ryabkov82/sheetmerge/internal/sheettest"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	return sheettest.WriteBytes(t, dir, "batch.toml", []byte(body))
}

const sharedMeta = `
[metadata]
department  = "Finance"
analyst     = "A1"
report_date = "2024-03-31"
version     = "1"
`

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `parallel = 3
`+sharedMeta+`
[[job]]
name   = "q1"
inputs = ["in/a.xlsx", "/abs/b.xlsx"]
output = "out/q1.xlsx"
[job.metadata]
project_name = "Quarterly"
analyst      = "B2"

[[job]]
dir    = "in"
output = "out/all.xlsx"
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Parallel)
	require.Len(t, m.Jobs, 2)

	q1 := m.Jobs[0]
	assert.Equal(t, []string{filepath.Join(dir, "in", "a.xlsx"), "/abs/b.xlsx"}, q1.Inputs)
	assert.Equal(t, filepath.Join(dir, "out", "q1.xlsx"), q1.Output)

	rec := q1.Record(m.Metadata)
	assert.Equal(t, "Quarterly", rec.Get(metadata.ProjectName))
	assert.Equal(t, "B2", rec.Get(metadata.Analyst))
	assert.Equal(t, "Finance", rec.Get(metadata.Department))

	assert.Equal(t, "job 2", m.Jobs[1].Name)
	assert.Equal(t, filepath.Join(dir, "in"), m.Jobs[1].Dir)
}

func TestLoadManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "no jobs",
			body: `parallel = 1`,
			want: []string{"manifest has no jobs"},
		},
		{
			name: "duplicate outputs",
			body: `
[[job]]
name = "a"
inputs = ["x.xlsx"]
output = "out.xlsx"
[[job]]
name = "b"
inputs = ["y.xlsx"]
output = "OUT.xlsx"
`,
			want: []string{"b: output", "also written by a"},
		},
		{
			name: "missing fields",
			body: `
[[job]]
name = "a"
`,
			want: []string{"a: inputs or dir is required", "a: output is required"},
		},
		{
			name: "unknown metadata",
			body: `
[metadata]
owner = "x"
[[job]]
name = "a"
inputs = ["x.xlsx"]
output = "out.xlsx"
[job.metadata]
team = "y"
`,
			want: []string{`unknown metadata field "owner"`, `a: unknown metadata field "team"`},
		},
		{
			name: "unknown key",
			body: `
[[job]]
name = "a"
inputs = ["x.xlsx"]
output = "out.xlsx"
ouput = "typo.xlsx"
`,
			want: []string{"unknown keys", "ouput"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.body)
			_, err := LoadManifest(path)
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestRunner_RunsJobsIndependently(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.Mkdir(in, 0o755))
	sheettest.WriteXLSX(t, in, "a.xlsx", [][]any{{"Name", "Amount"}, {"x", 1}, {"y", 2}})
	sheettest.WriteXLSX(t, in, "b.xlsx", [][]any{{"Name", "Region"}, {"z", "North"}})

	path := writeManifest(t, dir, sharedMeta+`
[[job]]
name   = "all"
dir    = "in"
output = "in/merged.xlsx"
[job.metadata]
project_name = "P1"

[[job]]
name   = "broken"
inputs = ["in/a.xlsx", "in/missing.xlsx"]
output = "broken.xlsx"
[job.metadata]
project_name = "P2"
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		events = make(map[string]int)
	)
	runner := NewRunner(config.Default(), 2, func(job Job, ev pipeline.Event) {
		mu.Lock()
		defer mu.Unlock()
		events[job.Name]++
	})

	results := runner.Run(context.Background(), m)
	require.Len(t, results, 2)
	assert.Equal(t, 1, Failed(results))

	all := results[0]
	assert.Equal(t, "all", all.Job.Name)
	require.True(t, all.Outcome.Success, all.Outcome.Message)
	assert.Equal(t, 3, all.Outcome.Rows)
	assert.NotEmpty(t, all.RunID)
	assert.Len(t, sheettest.ReadRows(t, filepath.Join(in, "merged.xlsx"), "Merged"), 4)

	broken := results[1]
	assert.Equal(t, apperror.KindValidation, broken.Outcome.Kind)
	assert.Equal(t, "cannot access file missing.xlsx", broken.Outcome.Message)
	assert.NoFileExists(t, filepath.Join(dir, "broken.xlsx"))

	assert.Equal(t, 8, events["all"], "2 files: 4 per-file events, 3 fixed, 1 terminal")
	assert.Equal(t, 2, events["broken"])

	// a rerun must not pick up its own output as an input
	results = runner.Run(context.Background(), m)
	assert.Equal(t, 3, results[0].Outcome.Rows)
}

func TestRunner_MissingDirectory(t *testing.T) {
	m := &Manifest{Jobs: []Job{{
		Name:   "gone",
		Dir:    filepath.Join(t.TempDir(), "nope"),
		Output: filepath.Join(t.TempDir(), "out.xlsx"),
	}}}

	results := NewRunner(config.Default(), 0, nil).Run(context.Background(), m)
	require.Len(t, results, 1)
	assert.Equal(t, apperror.KindValidation, results[0].Outcome.Kind)
	assert.Equal(t, "cannot list input directory for gone", results[0].Outcome.Message)
}

func TestJobRecord_Layers(t *testing.T) {
	job := Job{Metadata: map[string]string{"Analyst": "job", "version": " "}}
	rec := job.Record(
		map[string]string{"department": "config", "analyst": "config", "version": "1"},
		map[string]string{"analyst": "manifest", "department": ""},
	)

	assert.Equal(t, "config", rec.Get(metadata.Department))
	assert.Equal(t, "job", rec.Get(metadata.Analyst))
	assert.Equal(t, "1", rec.Get(metadata.Version))
}

func TestRunner_UsesConfigMetadata(t *testing.T) {
	dir := t.TempDir()
	sheettest.WriteXLSX(t, dir, "a.xlsx", [][]any{{"Name"}, {"x"}})
	cfgPath := sheettest.WriteBytes(t, dir, "sheetmerge.toml", []byte(`
[metadata]
department = "FromConfig"
`))
	v, err := config.NewViper(cfgPath)
	require.NoError(t, err)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	path := writeManifest(t, dir, `
[metadata]
analyst     = "A1"
report_date = "2024-03-31"
version     = "1"

[[job]]
name   = "q1"
inputs = ["a.xlsx"]
output = "q1.xlsx"
[job.metadata]
project_name = "P1"
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	results := NewRunner(cfg, 1, nil).Run(context.Background(), m)
	require.Len(t, results, 1)
	require.True(t, results[0].Outcome.Success, results[0].Outcome.Message)

	rows := sheettest.ReadRows(t, filepath.Join(dir, "q1.xlsx"), "Merged")
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "FromConfig")
}
