package main

import (
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ryabkov82/sheetmerge/internal/batch"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/pipeline"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		parallel int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Run every merge job of a TOML manifest",
		Long: `Run the merge jobs listed in a TOML manifest. Jobs are independent: a
failing job does not stop the others. Relative paths in the manifest are
resolved against its directory.`,
		Example: `  sheetmerge batch reports.toml --parallel 4`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := batch.LoadManifest(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			var mu sync.Mutex
			progress := func(job batch.Job, ev pipeline.Event) {
				if asJSON {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				printEvent(w, job.Name, ev)
			}

			results := batch.NewRunner(a.cfg, parallel, progress).Run(cmd.Context(), m)

			if asJSON {
				outs := make([]Output, len(results))
				for i, res := range results {
					outs[i] = newOutput(res.RunID, res.Outcome)
					outs[i].Job = res.Job.Name
				}
				if err := emitJSON(w, outs); err != nil {
					return err
				}
			} else {
				for _, res := range results {
					printOutcome(w, res.Job.Name, res.Outcome)
				}
			}

			if failed := batch.Failed(results); failed > 0 {
				slog.Error("batch finished with failures", "failed", failed, "jobs", len(results))
				return errFailed
			}
			slog.Info("batch finished", "jobs", len(results))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&parallel, "parallel", "p", 0, "jobs run at once (default: manifest setting, else CPU count)")
	f.BoolVar(&asJSON, "json", false, "print a JSON array of results instead of progress lines")
	f.String("policy", config.PolicyText, "columns with conflicting types: text or strict")
	f.Bool("add-source", false, "add a column naming the source file of each row")

	return cmd
}
