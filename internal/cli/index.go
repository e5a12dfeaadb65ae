package cli

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
)

var updateIndexCmd = &cobra.Command{
	Use:   "update-index",
	Short: "Refresh the cached repository index",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := repo.UpdateIndex(cmd.Context(), http.DefaultClient, cfg.Repo.Origin, cfg.IndexPath())
		if err != nil {
			return err
		}
		logger.Info("repository index updated",
			"origin", cfg.Repo.Origin,
			"datasets", len(idx.Datasets),
			"checkpoints", len(idx.Checkpoints))
		return nil
	},
}
