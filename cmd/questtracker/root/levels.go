package root

import (
	"fmt"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/SakuraBurst/questtracker/internal/tracker/leveling"
)

func newLevelsCmd() *cobra.Command {
	var from, to, exp int
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the leveling curve",
		Long:  "Prints the experience needed to clear each level in [from, to]. With --exp, reports the level reached by that total instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("exp") {
				p := leveling.DeriveLevel(exp)
				fmt.Fprintf(out, "level %d, %d/%d towards level %d\n", p.Level, p.CurrentExp, p.ExpForNextLevel, p.Level+1)
				return nil
			}
			if from < 1 || to < from {
				return errors.Errorf("invalid range [%d, %d]", from, to)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LEVEL\tREQUIRED\tTOTAL TO REACH")
			total := leveling.TotalForLevel(from)
			for l := from; l <= to; l++ {
				need := leveling.RequiredExperience(l)
				fmt.Fprintf(w, "%d\t%d\t%d\n", l, need, total)
				total += need
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&from, "from", 1, "first level")
	cmd.Flags().IntVar(&to, "to", 20, "last level")
	cmd.Flags().IntVar(&exp, "exp", 0, "total experience to resolve into a level")
	return cmd
}
