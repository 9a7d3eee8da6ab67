package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/felixgeelhaar/canvascoach/internal/ui"
	"github.com/felixgeelhaar/canvascoach/internal/ui/tui"
	"github.com/spf13/cobra"
)

func newChatCmd(opts *options) *cobra.Command {
	var section string
	var interactive bool

	cmd := &cobra.Command{
		Use:   "chat [submission] [question]",
		Short: "Ask the coach about a submission's canvas",
		Long: `Send one question to the coach, or start an interactive chat with -i.
The conversation continues in the submission's session while it is fresh.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			submissionID := args[0]
			if !interactive && len(args) < 2 {
				return errors.New("a question is required unless --interactive is set")
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if interactive {
				return runInteractiveChat(cmd.Context(), a, submissionID, section)
			}

			reply, err := a.coach.ProcessChatTurn(cmd.Context(), submissionID, strings.Join(args[1:], " "), section)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&section, "section", "s", "", "Focus on one canvas section instead of detecting it from the question")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start an interactive chat")
	return cmd
}

func runInteractiveChat(ctx context.Context, a *app, submissionID, section string) error {
	sub, err := a.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	ask := func(_ context.Context, question string) (string, error) {
		reply, err := a.coach.ProcessChatTurn(ctx, submissionID, question, section)
		if err != nil {
			return "", err
		}
		return reply.Text, nil
	}

	model := tui.NewModel("Canvas Coach: "+sub.WorkshopID, a.cfg.Poll.MaxAttempts, ask)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Attach(a.bus, tui.NewTUI(p))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat ended: %w", err)
	}
	return nil
}
