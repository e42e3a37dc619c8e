package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/metadata"
	"github.com/ryabkov82/sheetmerge/internal/sheettest"
)

func newValidator() *Validator {
	return New(config.Default().Validation)
}

func TestIsValidSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	v := newValidator()

	xlsx := sheettest.WriteXLSX(t, dir, "good.xlsx", [][]any{{"Name"}, {"a"}})
	upper := sheettest.WriteXLSX(t, dir, "GOOD.XLSX", [][]any{{"Name"}, {"a"}})
	renamed := sheettest.WriteBytes(t, dir, "fake.xlsx", []byte("Name,Amount\na,1\n"))
	xls := sheettest.WriteBytes(t, dir, "legacy.xls", append(append([]byte{}, oleSignature...), make([]byte, 32)...))
	zipAsXLS := sheettest.WriteBytes(t, dir, "zip.xls", append(append([]byte{}, zipSignature...), make([]byte, 32)...))
	csv := sheettest.WriteBytes(t, dir, "data.csv", []byte("a,b\n"))
	short := sheettest.WriteBytes(t, dir, "short.xlsx", []byte("PK"))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"xlsx", xlsx, true},
		{"upper case extension", upper, true},
		{"renamed text file", renamed, false},
		{"legacy xls", xls, true},
		{"zip behind xls name", zipAsXLS, false},
		{"unsupported extension", csv, false},
		{"truncated header", short, false},
		{"missing file", filepath.Join(dir, "missing.xlsx"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IsValidSpreadsheet(tt.path))
		})
	}
}

func TestIsAccessible(t *testing.T) {
	dir := t.TempDir()
	v := newValidator()

	ok := sheettest.WriteBytes(t, dir, "ok.xlsx", []byte("PK\x03\x04"))
	empty := sheettest.WriteBytes(t, dir, "empty.xlsx", nil)
	sub := filepath.Join(dir, "sub.xlsx")
	require.NoError(t, os.Mkdir(sub, 0o755))

	assert.True(t, v.IsAccessible(ok))
	assert.False(t, v.IsAccessible(empty))
	assert.False(t, v.IsAccessible(sub))
	assert.False(t, v.IsAccessible(filepath.Join(dir, "nope.xlsx")))
}

func TestIsAccessible_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	dir := t.TempDir()
	path := sheettest.WriteBytes(t, dir, "locked.xlsx", []byte("PK\x03\x04"))
	require.NoError(t, os.Chmod(path, 0o200))

	assert.False(t, newValidator().IsAccessible(path))
}

func TestCheckInput_Kinds(t *testing.T) {
	dir := t.TempDir()
	v := newValidator()

	err := v.CheckInput(filepath.Join(dir, "missing.xlsx"))
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, "cannot access file missing.xlsx", apperror.Message(err))

	fake := sheettest.WriteBytes(t, dir, "fake.xlsx", []byte("hello"))
	err = v.CheckInput(fake)
	require.Error(t, err)
	assert.Equal(t, "fake.xlsx is not a valid spreadsheet", apperror.Message(err))
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	v := newValidator()
	existingDir := filepath.Join(dir, "out.xlsx")
	require.NoError(t, os.Mkdir(existingDir, 0o755))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"new file", filepath.Join(dir, "merged.xlsx"), true},
		{"upper case extension", filepath.Join(dir, "merged.XLSX"), true},
		{"empty", "", false},
		{"no name", filepath.Join(dir, ".xlsx"), false},
		{"wrong extension", filepath.Join(dir, "merged.csv"), false},
		{"legacy extension", filepath.Join(dir, "merged.xls"), false},
		{"directory", existingDir, false},
		{"missing parent", filepath.Join(dir, "nope", "merged.xlsx"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ValidateOutputPath(tt.path))
		})
	}
}

func TestValidateOutputPath_ExistingFileIsOverwritable(t *testing.T) {
	dir := t.TempDir()
	path := sheettest.WriteBytes(t, dir, "merged.xlsx", []byte("old"))
	assert.True(t, newValidator().ValidateOutputPath(path))
}

func TestValidateOutputPath_ReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can write to read-only directories")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.Mkdir(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	assert.False(t, newValidator().ValidateOutputPath(filepath.Join(dir, "merged.xlsx")))
}

func TestValidateOutputPath_LeavesNoProbe(t *testing.T) {
	dir := t.TempDir()
	require.True(t, newValidator().ValidateOutputPath(filepath.Join(dir, "merged.xlsx")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestValidateMetadata(t *testing.T) {
	v := newValidator()

	valid := metadata.New(map[string]string{
		metadata.ProjectName: "P1",
		metadata.Department:  "D1",
		metadata.Analyst:     "A1",
		metadata.ReportDate:  "2024-01-01",
		metadata.Version:     "1",
	})
	assert.Empty(t, v.ValidateMetadata(valid))

	bad := metadata.New(map[string]string{
		metadata.ProjectName: "   ",
		metadata.Department:  strings.Repeat("x", 257),
		metadata.Analyst:     "A1",
		metadata.ReportDate:  "2024-01-01",
	})
	errs := v.ValidateMetadata(bad)
	assert.Equal(t, []FieldError{
		{Field: metadata.ProjectName, Problem: ProblemEmpty},
		{Field: metadata.Department, Problem: ProblemTooLong},
		{Field: metadata.Version, Problem: ProblemEmpty},
	}, errs)
	assert.Equal(t, "project_name: empty", errs[0].Error())
}

func TestValidateMetadata_LengthCountsRunes(t *testing.T) {
	v := newValidator()
	rec := metadata.New(map[string]string{
		metadata.ProjectName: strings.Repeat("ж", 256),
		metadata.Department:  "D",
		metadata.Analyst:     "A",
		metadata.ReportDate:  "R",
		metadata.Version:     "V",
	})
	assert.Empty(t, v.ValidateMetadata(rec))
}

func TestFindSpreadsheets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	sheettest.WriteBytes(t, dir, "b.xlsx", []byte("x"))
	sheettest.WriteBytes(t, dir, "a.XLS", []byte("x"))
	sheettest.WriteBytes(t, dir, "notes.txt", []byte("x"))
	sheettest.WriteBytes(t, dir, "~$b.xlsx", []byte("x"))
	sheettest.WriteBytes(t, filepath.Join(dir, "nested"), "c.xlsx", []byte("x"))

	files, err := newValidator().FindSpreadsheets(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.XLS"),
		filepath.Join(dir, "b.xlsx"),
		filepath.Join(dir, "nested", "c.xlsx"),
	}, files)
}

func TestExclude(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "a.xlsx"),
		filepath.Join(dir, "merged.xlsx"),
		filepath.Join(dir, "sub", "merged.xlsx"),
	}

	got := Exclude(paths, filepath.Join(dir, "sub", "..", "MERGED.xlsx"))
	assert.Equal(t, []string{paths[0], paths[2]}, got)
	assert.Equal(t, paths, Exclude(paths, ""))
}
