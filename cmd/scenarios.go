package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the available scenario modes",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range model.ScenarioNames() {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
