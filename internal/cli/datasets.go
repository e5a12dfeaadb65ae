package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
)

var datasetsLocal bool

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List, download and remove benchmark datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listItems(repo.TypeDataset, datasetsLocal)
	},
}

var datasetsPullCmd = &cobra.Command{
	Use:   "pull <name>",
	Short: "Download and install a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pullItem(cmd.Context(), repo.TypeDataset, args[0])
	},
}

var datasetsRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove an installed dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return removeItem(repo.TypeDataset, args[0])
	},
}

func init() {
	datasetsCmd.Flags().BoolVar(&datasetsLocal, "local", false, "list installed datasets only")

	datasetsCmd.AddCommand(datasetsPullCmd)
	datasetsCmd.AddCommand(datasetsRmCmd)
}

// listItems renders the repository items of one type as a table. With
// localOnly only installed items are shown, which works without a
// repository index.
func listItems(t repo.ItemType, localOnly bool) error {
	reg := newRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "NAME\tORIGIN\tSIZE\tINSTALLED")

	if localOnly {
		names, err := reg.InstalledNames(t)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintf(w, "%s\t-\t-\ttrue\n", name)
		}
		return nil
	}

	origins, err := reg.Available(t)
	if err != nil {
		return err
	}
	for _, o := range origins {
		item, err := reg.Get(o.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", o.Name, o.Host(), o.SizeLabel(), item.Installed())
	}
	return nil
}

func pullItem(ctx context.Context, t repo.ItemType, name string) error {
	reg, err := newPullRegistry(ctx)
	if err != nil {
		return err
	}
	item, err := getTyped(reg, t, name)
	if err != nil {
		return err
	}
	if err := item.Pull(ctx, repo.PullOptions{Quiet: quiet}); err != nil {
		return err
	}
	logger.Info("installed", "name", item.Name(), "location", item.Location())
	return nil
}

func removeItem(t repo.ItemType, name string) error {
	item, err := getTyped(newRegistry(), t, name)
	if err != nil {
		return err
	}
	if err := item.Uninstall(); err != nil {
		return err
	}
	logger.Info("uninstalled", "name", item.Name())
	return nil
}

func getTyped(reg *repo.Registry, t repo.ItemType, name string) (*repo.Item, error) {
	if t == repo.TypeCheckpoint {
		return reg.Checkpoint(name)
	}
	return reg.Dataset(name)
}
