package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	dbPath       string
	configPath   string
	verbose      bool
	jsonLogs     bool
	providerType string
	modelName    string
}

// NewRootCmd builds the command tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "canvascoach",
		Short: "AI coaching sessions for workshop canvases",
		Long: `canvascoach binds each workshop submission to a conversation session held
by a generative-AI assistant, reuses it while it is fresh, and reclaims it
once it has been idle for longer than the session TTL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (default ~/.canvascoach/canvascoach.db)")
	flags.StringVar(&opts.configPath, "config", "", "YAML file with session, polling and rate limit settings")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&opts.jsonLogs, "json", false, "Log as JSON")
	flags.StringVarP(&opts.providerType, "provider", "p", "assistants", "Assistant backend (assistants, openai, ollama, gemini, anthropic, stub)")
	flags.StringVarP(&opts.modelName, "model", "m", "", "Model name for chat providers (default depends on provider)")

	root.AddCommand(
		newWorkshopCmd(opts),
		newSubmissionCmd(opts),
		newChatCmd(opts),
		newResetCmd(opts),
		newGenerateCmd(opts),
		newFeedbackCmd(opts),
		newReapCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
