package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/validate"
	"github.com/ryabkov82/sheetmerge/internal/workbook"
)

// check is one validate result.
type check struct {
	Target string `json:"target"`
	Valid  bool   `json:"valid"`
	Rows   int    `json:"rows,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		out      string
		withMeta bool
		load     bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "validate [FILE...]",
		Short: "Check inputs, an output path and metadata without merging",
		Example: `  sheetmerge validate jan.xlsx feb.xls
  sheetmerge validate --load --out report.xlsx --metadata --analyst "J. Doe" jan.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && out == "" && !withMeta {
				return errors.New("nothing to validate: pass files, --out or --metadata")
			}

			v := validate.New(a.cfg.Validation)
			reader := workbook.NewReader(a.cfg.Reader)
			var checks []check

			for _, path := range args {
				c := check{Target: path, Valid: true}
				err := v.CheckInput(path)
				if err == nil && load {
					var rows int
					rows, err = loadRows(reader, path)
					c.Rows = rows
				}
				if err != nil {
					c.Valid = false
					c.Error = apperror.Message(err)
				}
				checks = append(checks, c)
			}
			if out != "" {
				c := check{Target: out, Valid: true}
				if err := v.CheckOutput(out); err != nil {
					c.Valid = false
					c.Error = apperror.Message(err)
				}
				checks = append(checks, c)
			}
			if withMeta {
				errs := v.ValidateMetadata(a.metadataRecord())
				for _, fe := range errs {
					checks = append(checks, check{Target: "metadata." + fe.Field, Error: fe.Problem})
				}
				if len(errs) == 0 {
					checks = append(checks, check{Target: "metadata", Valid: true})
				}
			}

			w := cmd.OutOrStdout()
			if asJSON {
				if err := emitJSON(w, checks); err != nil {
					return err
				}
			}
			failed := 0
			for _, c := range checks {
				if !c.Valid {
					failed++
				}
				if asJSON {
					continue
				}
				switch {
				case !c.Valid:
					fmt.Fprintln(w, styles.failure.Render("✗")+" "+c.Target+": "+c.Error)
				case c.Rows > 0:
					fmt.Fprintln(w, styles.success.Render("✓")+" "+c.Target+" "+styles.muted.Render(fmt.Sprintf("(%d rows)", c.Rows)))
				default:
					fmt.Fprintln(w, styles.success.Render("✓")+" "+c.Target)
				}
			}
			if failed > 0 {
				return errFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "also check that a workbook can be written here")
	f.BoolVar(&withMeta, "metadata", false, "also check the metadata fields")
	f.BoolVar(&load, "load", false, "also read each valid file and count its data rows")
	f.BoolVar(&asJSON, "json", false, "print a JSON array of checks")
	f.String("sheet", "", "sheet read by --load (default: all sheets)")
	addMetadataFlags(f)

	return cmd
}

func loadRows(r *workbook.Reader, path string) (int, error) {
	t, err := r.Load(path)
	if err != nil {
		return 0, err
	}
	return t.Len(), nil
}
