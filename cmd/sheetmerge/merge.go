package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/pipeline"
	"github.com/ryabkov82/sheetmerge/internal/validate"
)

func newMergeCmd(a *app) *cobra.Command {
	var (
		out    string
		dir    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "merge --out FILE [FILE...]",
		Short: "Merge spreadsheets into one workbook",
		Long: `Merge the given files, and every spreadsheet under --dir, into one .xlsx
workbook. Inputs are processed in the order given; files found under --dir
follow in lexical order. The output is replaced only when the whole run
succeeds.

The metadata columns (project_name, department, analyst, report_date,
version) and the --add-source column are appended to every row. An input
column with one of those names, in any letter case, fails the merge; rename
it in the source file first.`,
		Example: `  sheetmerge merge -o report.xlsx --project-name Apollo --department Finance \
    --analyst "J. Doe" --report-date 2024-03-31 --version 1 jan.xlsx feb.xlsx
  sheetmerge merge --dir inputs --policy strict --json -o report.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := append([]string(nil), args...)
			if dir != "" {
				found, err := validate.New(a.cfg.Validation).FindSpreadsheets(dir)
				if err != nil {
					return err
				}
				inputs = append(inputs, validate.Exclude(found, out)...)
			}
			if len(inputs) == 0 {
				return errors.New("no input files: pass files as arguments or use --dir")
			}

			run, err := pipeline.NewFromConfig(a.cfg).Start(cmd.Context(), pipeline.Request{
				Inputs:   inputs,
				Metadata: a.metadataRecord(),
				Output:   out,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for ev := range run.Events() {
				if !asJSON {
					printEvent(w, "", ev)
				}
			}
			outcome := run.Wait()

			if asJSON {
				if err := emitJSON(w, newOutput(run.ID(), outcome)); err != nil {
					return err
				}
			} else {
				printOutcome(w, "", outcome)
			}
			if !outcome.Success {
				return errFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "output workbook (.xlsx)")
	f.StringVarP(&dir, "dir", "d", "", "also merge every spreadsheet under this directory")
	f.BoolVar(&asJSON, "json", false, "print one JSON result instead of progress lines")
	f.String("sheet", "", "read only this sheet of each input (default: all sheets)")
	f.String("policy", config.PolicyText, "columns with conflicting types: text or strict")
	f.Bool("add-source", false, "add a column naming the source file of each row")
	f.String("sheet-name", "Merged", "name of the output sheet")
	addMetadataFlags(f)
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
