// Package validate checks input workbooks, the output location and the
// metadata record before a merge run touches any data.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/metadata"
)

var (
	// zipSignature starts every OOXML package.
	zipSignature = []byte{'P', 'K', 0x03, 0x04}
	// oleSignature starts compound documents: legacy .xls and encrypted OOXML.
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// signatures lists the accepted leading bytes per extension.
var signatures = map[string][][]byte{
	".xlsx": {zipSignature, oleSignature},
	".xlsm": {zipSignature, oleSignature},
	".xls":  {oleSignature},
}

// Problems reported by ValidateMetadata.
const (
	ProblemEmpty   = "empty"
	ProblemTooLong = "too long"
)

// FieldError is one metadata violation.
type FieldError struct {
	Field   string
	Problem string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Problem)
}

// Validator holds the accepted extensions and metadata limits. Its methods
// have no side effects on the inspected paths.
type Validator struct {
	inputExts      []string
	outputExts     []string
	maxFieldLength int
}

// New returns a Validator configured from cfg.
func New(cfg config.ValidationConfig) *Validator {
	return &Validator{
		inputExts:      cfg.InputExtensions,
		outputExts:     cfg.OutputExtensions,
		maxFieldLength: cfg.MaxFieldLength,
	}
}

// IsValidSpreadsheet reports whether path has an accepted extension and
// starts with that format's signature.
func (v *Validator) IsValidSpreadsheet(path string) bool {
	return v.checkSignature(path) == nil
}

// IsAccessible reports whether path is a readable, non-empty regular file.
func (v *Validator) IsAccessible(path string) bool {
	return checkAccess(path) == nil
}

// ValidateOutputPath reports whether a workbook can be written at path.
func (v *Validator) ValidateOutputPath(path string) bool {
	return v.CheckOutput(path) == nil
}

// CheckInput runs the accessibility and format checks on path and returns a
// ValidationError describing the first failure.
func (v *Validator) CheckInput(path string) error {
	name := filepath.Base(path)
	if err := checkAccess(path); err != nil {
		return apperror.NewValidation(fmt.Sprintf("cannot access file %s", name), err)
	}
	if err := v.checkSignature(path); err != nil {
		return apperror.NewValidation(fmt.Sprintf("%s is not a valid spreadsheet", name), err)
	}
	return nil
}

func checkAccess(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	if info.Size() == 0 {
		return errors.New("file is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (v *Validator) checkSignature(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !contains(v.inputExts, ext) {
		return fmt.Errorf("extension %q is not accepted", filepath.Ext(path))
	}
	want, ok := signatures[ext]
	if !ok {
		return fmt.Errorf("no signature known for %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(oleSignature))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read header: %w", err)
	}
	head = head[:n]
	for _, sig := range want {
		if bytes.HasPrefix(head, sig) {
			return nil
		}
	}
	return errors.New("file signature does not match its extension")
}

// CheckOutput returns a ValidationError when path cannot receive the output.
func (v *Validator) CheckOutput(path string) error {
	invalid := func(reason string, err error) error {
		return apperror.NewValidation("invalid output path: "+reason, err)
	}

	if strings.TrimSpace(path) == "" {
		return invalid("no output file given", nil)
	}
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	if strings.TrimSuffix(base, filepath.Ext(base)) == "" {
		return invalid("file name is empty", nil)
	}
	if !contains(v.outputExts, ext) {
		return invalid(fmt.Sprintf("extension must be one of %s", strings.Join(v.outputExts, ", ")), nil)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return invalid(base+" is a directory", nil)
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return invalid("directory does not exist", err)
	}
	if !info.IsDir() {
		return invalid("parent is not a directory", nil)
	}
	probe, err := os.CreateTemp(dir, ".sheetmerge-probe-*")
	if err != nil {
		return invalid("directory is not writable", err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}

// ValidateMetadata checks every metadata field and returns all violations,
// in key order. An empty result means the record is valid.
func (v *Validator) ValidateMetadata(rec metadata.Record) []FieldError {
	var errs []FieldError
	for _, k := range metadata.Keys {
		val := strings.TrimSpace(rec.Get(k))
		switch {
		case val == "":
			errs = append(errs, FieldError{Field: k, Problem: ProblemEmpty})
		case utf8.RuneCountInString(val) > v.maxFieldLength:
			errs = append(errs, FieldError{Field: k, Problem: ProblemTooLong})
		}
	}
	return errs
}

// FindSpreadsheets returns the files under dir with an accepted extension,
// in lexical order.
func (v *Validator) FindSpreadsheets(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		if contains(v.inputExts, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// Exclude returns paths without the entries that name the same file as
// path. It keeps a previous output out of a directory scan.
func Exclude(paths []string, path string) []string {
	if path == "" {
		return paths
	}
	target := filepath.Clean(path)
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		candidate := filepath.Clean(p)
		if abs, err := filepath.Abs(candidate); err == nil {
			candidate = abs
		}
		if !strings.EqualFold(candidate, target) {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
