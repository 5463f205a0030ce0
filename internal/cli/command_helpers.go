package cli

import "github.com/spf13/cobra"

// newGroupCommand builds a cobra.Command that groups subcommands.
func newGroupCommand(use, short string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}
	if len(subcommands) > 0 {
		cmd.AddCommand(subcommands...)
	}
	return cmd
}

// targetArg returns the positional target identifier, falling back to SHIPCTL_TARGET.
func targetArg(opts *Options, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return opts.Env.Target
}
