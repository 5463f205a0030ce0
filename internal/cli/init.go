package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/config"
)

// newInitCommand creates the "init" subcommand that writes a fresh manifest.
func newInitCommand(opts *Options) *cobra.Command {
	var (
		frontend    string
		frontendDir string
		contracts   string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create " + config.ManifestFileName + " in the project root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			projectDir, err := resolveProjectDir(opts)
			if err != nil {
				return err
			}
			store := config.NewStore(projectDir, logger)
			if store.Exists() {
				return fmt.Errorf("%s already exists", store.Path())
			}

			m := config.NewManifest()
			if frontend != "" {
				if frontend != config.FrontendReact && frontend != config.FrontendHTML {
					return fmt.Errorf("unsupported frontend language %q (supported: %q, %q)", frontend, config.FrontendReact, config.FrontendHTML)
				}
				m.Frontend = &config.FrontendSpec{Language: frontend, Directory: frontendDir}
			}
			if contracts != "" {
				if contracts != config.ContractLanguageSCrypt {
					return errors.New("only " + config.ContractLanguageSCrypt + " contracts are supported")
				}
				m.Contracts = &config.ContractsSpec{Language: contracts}
			}

			if err := store.Save(m); err != nil {
				return err
			}
			logger.Info("manifest created", "path", store.Path())
			_, err = fmt.Fprintln(cmd.OutOrStdout(), FormatCheckmark("created "+StyleNoun.Render(store.Path())))
			return err
		},
	}

	cmd.Flags().StringVar(&frontend, "frontend", "", "Frontend language (react, html)")
	cmd.Flags().StringVar(&frontendDir, "frontend-dir", "", "Frontend directory (default "+config.DefaultFrontendDir+")")
	cmd.Flags().StringVar(&contracts, "contracts", "", "Contract language ("+config.ContractLanguageSCrypt+")")
	return cmd
}
