package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ta25stage/stagelink/internal/regions"
	"github.com/ta25stage/stagelink/internal/sequence"
)

func newTabWriter(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 6, 4, 3, ' ', tabwriter.TabIndent)
}

type groupRow struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Regions []int  `json:"regions"`
}

func newGroupsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the cross-panel region groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []groupRow
			for _, t := range regions.Tags() {
				rows = append(rows, groupRow{
					ID:      int(t),
					Name:    t.String(),
					Regions: regionList(regions.GroupSet(t)),
				})
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), rows)
			}

			w := newTabWriter(cmd)
			fmt.Fprintln(w, "ID\tNAME\tREGIONS")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.Name, joinInts(r.Regions))
			}
			return w.Flush()
		},
	}
}

type regionRow struct {
	Index      int      `json:"index"`
	Panel      uint8    `json:"panel"`
	Local      int      `json:"local"`
	Name       string   `json:"name"`
	Pin        int      `json:"pin"`
	LocalGroup string   `json:"local_group"`
	Groups     []string `json:"groups"`
}

func newRegionsCmd(opts *globalOptions) *cobra.Command {
	var panel int
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the region table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("panel") {
				if panel < 1 || panel > regions.NumPanels {
					return fmt.Errorf("unknown panel %d", panel)
				}
			}

			var rows []regionRow
			for _, r := range regions.All() {
				if panel != 0 && int(r.Panel) != panel {
					continue
				}
				row := regionRow{
					Index:      int(r.Index),
					Panel:      r.Panel,
					Local:      int(r.Local),
					Name:       r.Name,
					Pin:        r.Pin,
					LocalGroup: r.LocalGroup.String(),
				}
				for _, t := range r.Tags() {
					row.Groups = append(row.Groups, t.String())
				}
				rows = append(rows, row)
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), rows)
			}

			w := newTabWriter(cmd)
			fmt.Fprintln(w, "INDEX\tPANEL\tLOCAL\tNAME\tPIN\tLOCAL GROUP\tGROUPS")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\t%s\t%s\n",
					r.Index, r.Panel, r.Local, r.Name, r.Pin, r.LocalGroup, strings.Join(r.Groups, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&panel, "panel", "p", 0, "Only list this panel's regions")
	return cmd
}

type showRow struct {
	ID       uint8  `json:"id"`
	Name     string `json:"name"`
	Steps    int    `json:"steps"`
	Duration string `json:"duration"`
}

type stepRow struct {
	Step       int    `json:"step"`
	Op         string `json:"op"`
	Effect     string `json:"effect"`
	Brightness uint8  `json:"brightness"`
	Speed      uint8  `json:"speed"`
	Hold       string `json:"hold"`
	Regions    []int  `json:"regions"`
}

func newShowsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "shows [ID]",
		Short:   "List the show catalogue, or the steps of one show",
		Example: "showctl shows\nshowctl shows 2",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return printShow(cmd, opts, args[0])
			}

			var rows []showRow
			for _, s := range sequence.Catalogue() {
				rows = append(rows, showRow{
					ID:       s.ID,
					Name:     s.Name,
					Steps:    len(s.Steps),
					Duration: s.Duration().String(),
				})
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), rows)
			}

			w := newTabWriter(cmd)
			fmt.Fprintln(w, "ID\tNAME\tSTEPS\tDURATION")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.ID, r.Name, r.Steps, r.Duration)
			}
			return w.Flush()
		},
	}
}

// printShow lists a show's steps with the region mask each step leaves
// lit.
func printShow(cmd *cobra.Command, opts *globalOptions, arg string) error {
	id, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return fmt.Errorf("show id %q is not a number between 0 and 255", arg)
	}
	show, ok := sequence.Lookup(uint8(id))
	if !ok {
		return fmt.Errorf("unknown show %d", id)
	}

	var mask regions.Set
	rows := make([]stepRow, len(show.Steps))
	for i, st := range show.Steps {
		mask = st.Apply(mask)
		rows[i] = stepRow{
			Step:       i,
			Op:         st.Op.String(),
			Effect:     st.Effect.String(),
			Brightness: st.Brightness,
			Speed:      st.Speed,
			Hold:       st.Hold.String(),
			Regions:    regionList(mask),
		}
	}
	if opts.jsonOutput() {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"id":    show.ID,
			"name":  show.Name,
			"steps": rows,
		})
	}

	w := newTabWriter(cmd)
	fmt.Fprintf(w, "%s (%d), %s\n", show.Name, show.ID, show.Duration())
	fmt.Fprintln(w, "STEP\tOP\tEFFECT\tBRIGHTNESS\tSPEED\tHOLD\tREGIONS")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Step, r.Op, r.Effect, r.Brightness, r.Speed, r.Hold, joinInts(r.Regions))
	}
	return w.Flush()
}

func joinInts(v []int) string {
	if len(v) == 0 {
		return "-"
	}
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}
