package cli

import (
	"github.com/spf13/cobra"

	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
)

var checkpointsLocal bool

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List, download and remove model checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listItems(repo.TypeCheckpoint, checkpointsLocal)
	},
}

var checkpointsPullCmd = &cobra.Command{
	Use:   "pull <name>",
	Short: "Download and install a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pullItem(cmd.Context(), repo.TypeCheckpoint, args[0])
	},
}

var checkpointsRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove an installed checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return removeItem(repo.TypeCheckpoint, args[0])
	},
}

func init() {
	checkpointsCmd.Flags().BoolVar(&checkpointsLocal, "local", false, "list installed checkpoints only")

	checkpointsCmd.AddCommand(checkpointsPullCmd)
	checkpointsCmd.AddCommand(checkpointsRmCmd)
}
