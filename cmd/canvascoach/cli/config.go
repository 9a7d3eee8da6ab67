package cli

import (
	"fmt"

	"github.com/felixgeelhaar/canvascoach/internal/credential"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stored configuration and credentials",
		Long: `Keys ending in .api_key are encrypted before they are stored.
Known keys: openai.api_key, openai.base_url, openai.assistant_id,
gemini.api_key, anthropic.api_key, session.ttl, session.reap_interval,
session.reap_concurrency, poll.max_attempts, poll.initial_delay,
poll.max_delay, rate_limit.rps, rate_limit.burst.`,
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			key, value := args[0], args[1]
			if err := a.vault.Set(a.store, key, value); err != nil {
				return err
			}
			if credential.IsSecretKey(key) {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s (encrypted)\n", key, credential.MaskSecret(value))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}

	var reveal bool
	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			key := args[0]
			value, err := a.vault.Get(a.store, key)
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("%s is not set", key)
			}
			if credential.IsSecretKey(key) && !reveal {
				value = credential.MaskSecret(value)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	getCmd.Flags().BoolVar(&reveal, "reveal", false, "Print credentials in clear text")

	cmd.AddCommand(setCmd, getCmd)
	return cmd
}
