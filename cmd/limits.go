package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/train-sim/train-sim/sim"
	"github.com/train-sim/train-sim/sim/timetable"
)

// limitsCmd prints the latest exit time of every node, per train
var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Print the propagated node limits of every train",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		_, s, err := loadProblem(problemPath, cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRAIN\tNODE\tLIMIT")
		for _, t := range s.Trains {
			for _, n := range s.Network.Nodes {
				if n.Train != t.ID {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, n.Label, formatLimit(n.Limit))
			}
		}
		w.Flush()
	},
}

func formatLimit(limit int64) string {
	if limit == sim.Unbounded {
		return "-"
	}
	return timetable.FormatClock(limit)
}
