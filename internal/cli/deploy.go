package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/archive"
	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/ghoutput"
	"github.com/shipctl/shipctl/internal/remote"
	"github.com/shipctl/shipctl/internal/targets"
)

// newDeployCommand creates the "deploy" subcommand that uploads an archive to the control plane.
func newDeployCommand(opts *Options) *cobra.Command {
	var (
		f            buildFlags
		artifactPath string
		token        string
	)

	cmd := &cobra.Command{
		Use:   "deploy [target]",
		Short: "Build (or reuse) an archive and upload it for the selected target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())

			projectDir, err := resolveProjectDir(opts)
			if err != nil {
				return err
			}
			m, err := config.NewStore(projectDir, logger).Load()
			if err != nil {
				return err
			}
			entry, err := targets.New(m).Select(targetArg(opts, args), targets.NewPromptChooser(cmd.InOrStdin(), cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if err := targets.RequireRemote(entry); err != nil {
				return err
			}

			path, err := deployArtifact(cmd, opts, &f, artifactPath, projectDir, entry)
			if err != nil {
				return err
			}

			session := remote.Session{
				Endpoint: entry.Target.Endpoint,
				Token:    firstSet(cmd.Flags().Changed("token"), token, opts.Env.Token, opts.Settings.Token),
			}
			client := remote.NewClient(remote.WithLogger(logger))

			upload, err := client.CreateUpload(cmd.Context(), session, entry.Target.ProjectID)
			if err != nil {
				return fmt.Errorf("create deployment: %w", err)
			}
			logger.Info("uploading artifact", "target", entry.Name(), "deployment", upload.DeploymentID, "artifact", path)
			if err := client.UploadArtifact(cmd.Context(), upload.UploadURL, path); err != nil {
				return err
			}

			status := "uploaded"
			if upload.DeploymentID != "" {
				dep, err := client.Deployment(cmd.Context(), session, entry.Target.ProjectID, upload.DeploymentID)
				if err != nil {
					return fmt.Errorf("read deployment status: %w", err)
				}
				status = dep.Status
			}

			if err := ghoutput.Write(map[string]string{
				"artifact":   path,
				"deployment": upload.DeploymentID,
			}); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), FormatCheckmark(fmt.Sprintf("deployment %s for %s: %s",
				StyleNoun.Render(upload.DeploymentID), StyleNoun.Render(entry.Name()), status)))
			return err
		},
	}

	addBuildFlags(cmd, &f)
	cmd.Flags().StringVar(&artifactPath, "artifact", "", `Upload an existing archive instead of building: a path or "latest"`)
	cmd.Flags().StringVar(&token, "token", "", "Control-plane access token (default SHIPCTL_TOKEN)")
	return cmd
}

// deployArtifact returns the archive to upload, building one when none was named.
func deployArtifact(cmd *cobra.Command, opts *Options, f *buildFlags, artifactPath, projectDir string, entry targets.Entry) (string, error) {
	switch artifactPath {
	case "":
		res, err := runBuild(cmd, opts, f, strconv.Itoa(entry.Index))
		if err != nil {
			return "", err
		}
		return res.Artifact.Path, nil
	case "latest":
		latest, err := archive.Latest(resolveArtifactDir(cmd, opts, projectDir))
		if err != nil {
			return "", err
		}
		return latest.Path, nil
	default:
		if _, err := os.Stat(artifactPath); err != nil {
			return "", fmt.Errorf("artifact %q: %w", artifactPath, err)
		}
		return artifactPath, nil
	}
}
