package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// validateCmd checks that an instance builds and that the configuration is sane
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a problem instance and configuration without planning",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		prob, _, err := loadProblem(problemPath, cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Printf("%s: %d trains, %d nodes, %d sections, %d resources\n",
			prob.Instance.Label, len(prob.Trains), len(prob.Network.Nodes),
			len(prob.Network.Sections), prob.Resources.Len())
	},
}
