package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/targets"
)

func newTargetsCommand(opts *Options) *cobra.Command {
	return newGroupCommand("targets", "Inspect and edit deployment targets",
		newTargetsListCommand(opts),
		newTargetsAddCommand(opts),
	)
}

func newTargetsListCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all targets; targets of other providers are marked ineligible",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectDir, err := resolveProjectDir(opts)
			if err != nil {
				return err
			}
			m, err := config.NewStore(projectDir, LoggerFromContext(cmd.Context())).Load()
			if err != nil {
				return err
			}

			entries := targets.New(m).All()
			if len(entries) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no targets defined; add one with 'shipctl targets add'")
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, targetRow(e))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "NAME", "PROVIDER", "NETWORK", "DEPLOY", "ELIGIBLE"}, rows))
			return err
		},
	}
}

func targetRow(e targets.Entry) []string {
	deploy := make([]string, 0, len(e.Target.Deploy))
	for _, s := range e.Target.Deploy {
		deploy = append(deploy, string(s))
	}
	eligible := "yes"
	name := e.Name()
	if !e.Eligible {
		eligible = "no"
		name = StyleDim.Render(name)
	}
	return []string{
		strconv.Itoa(e.Index),
		name,
		e.Target.Provider,
		e.Target.Network,
		strings.Join(deploy, ","),
		eligible,
	}
}

func newTargetsAddCommand(opts *Options) *cobra.Command {
	var (
		t      config.Target
		deploy []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a target to the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			projectDir, err := resolveProjectDir(opts)
			if err != nil {
				return err
			}
			store := config.NewStore(projectDir, logger)
			m, err := store.Load()
			if err != nil {
				return err
			}

			if strings.TrimSpace(t.Name) == "" {
				return fmt.Errorf("--name is required")
			}
			for _, e := range targets.New(m).All() {
				if e.Name() == t.Name {
					return fmt.Errorf("target %q already exists at index %d", t.Name, e.Index)
				}
			}
			t.Deploy = nil
			for _, d := range deploy {
				t.Deploy = append(t.Deploy, config.Subsystem(strings.TrimSpace(d)))
			}

			m.Targets = append(m.Targets, t)
			if err := store.Save(m); err != nil {
				return err
			}
			logger.Info("target added", "name", t.Name, "index", len(m.Targets)-1)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), FormatCheckmark("added target "+StyleNoun.Render(t.Name)))
			return err
		},
	}

	cmd.Flags().StringVar(&t.Name, "name", "", "Target name")
	cmd.Flags().StringVar(&t.Provider, "provider", config.ProviderShipctl, "Provider tag")
	cmd.Flags().StringVar(&t.Network, "network", "", "Network identifier (e.g. testnet, mainnet)")
	cmd.Flags().StringVar(&t.ProjectID, "project-id", "", "Control-plane project id")
	cmd.Flags().StringVar(&t.Endpoint, "endpoint", "", "Control-plane base URL")
	cmd.Flags().StringVar(&t.FrontendHosting, "frontend-hosting", "", "Frontend hosting method, passed through as-is")
	cmd.Flags().StringSliceVar(&deploy, "deploy", nil, "Subsystems to build and ship (backend, frontend)")
	return cmd
}
