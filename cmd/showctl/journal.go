package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ta25stage/stagelink/internal/journal"
)

func newJournalCmd(opts *globalOptions) *cobra.Command {
	var (
		panel   int
		outcome string
		limit   int
		offset  int
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent dispatches from the coordinator's journal",
		Example: `showctl journal
showctl journal --panel 0 --outcome failed --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			filter := journal.Filter{Outcome: outcome, Limit: limit, Offset: offset}
			if cmd.Flags().Changed("panel") {
				filter.PanelID = &panel
			}
			res, err := journal.NewSQLiteRepository(db.DB).List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("reading journal: %w", err)
			}

			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}

			w := newTabWriter(cmd)
			fmt.Fprintln(w, "TIME\tPANEL\tMODE\tEFFECT\tBRIGHTNESS\tSPEED\tREGIONS\tOUTCOME")
			for _, e := range res.Entries {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime),
					e.PanelID, e.Mode, e.Effect, e.Brightness, e.Speed,
					joinInts(e.Regions), e.Outcome)
			}
			fmt.Fprintf(w, "%d of %d entries\n", len(res.Entries), res.Total)
			return w.Flush()
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&panel, "panel", "p", 0, "Only this panel id (0 for broadcasts)")
	fl.StringVar(&outcome, "outcome", "", "Only this outcome: sent, failed, unknown_panel or suppressed")
	fl.IntVarP(&limit, "limit", "n", journal.DefaultLimit, "Maximum entries to show")
	fl.IntVar(&offset, "offset", 0, "Entries to skip")
	return cmd
}
