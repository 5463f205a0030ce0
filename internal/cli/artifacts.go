package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/archive"
)

func newArtifactsCommand(opts *Options) *cobra.Command {
	cmd := newGroupCommand("artifacts", "Inspect and prune built archives",
		newArtifactsListCommand(opts),
		newArtifactsLatestCommand(opts),
		newArtifactsPruneCommand(opts),
	)
	cmd.PersistentFlags().String("artifact-dir", "", "Directory holding archives")
	return cmd
}

func artifactDirFromCmd(cmd *cobra.Command, opts *Options) (string, error) {
	projectDir, err := resolveProjectDir(opts)
	if err != nil {
		return "", err
	}
	return resolveArtifactDir(cmd, opts, projectDir), nil
}

func newArtifactsListCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := artifactDirFromCmd(cmd, opts)
			if err != nil {
				return err
			}
			all, err := archive.List(dir)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "no artifacts in %s\n", dir)
				return err
			}
			rows := make([][]string, 0, len(all))
			for _, a := range all {
				rows = append(rows, []string{a.Name, a.CreatedAt.Local().Format(time.DateTime), humanSize(a.Size)})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"NAME", "CREATED", "SIZE"}, rows))
			return err
		},
	}
}

func newArtifactsLatestCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the path of the newest archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := artifactDirFromCmd(cmd, opts)
			if err != nil {
				return err
			}
			latest, err := archive.Latest(dir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), latest.Path)
			return err
		},
	}
}

func newArtifactsPruneCommand(opts *Options) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			dir, err := artifactDirFromCmd(cmd, opts)
			if err != nil {
				return err
			}
			removed, err := archive.Prune(dir, keep)
			for _, a := range removed {
				logger.Info("artifact removed", "name", a.Name)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), FormatCheckmark(fmt.Sprintf("removed %d artifact(s), kept %d", len(removed), keep)))
			return err
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 5, "Number of newest archives to keep")
	return cmd
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
