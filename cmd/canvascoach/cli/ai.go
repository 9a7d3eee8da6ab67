package cli

import (
	"fmt"
	"os"

	"github.com/felixgeelhaar/canvascoach/internal/canvas"
	"github.com/felixgeelhaar/canvascoach/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [submission]",
		Short: "Drop a submission's conversation so the next chat starts fresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.coach.ResetSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Conversation reset")
			return nil
		},
	}
}

// answersFile is the on-disk form of questionnaire answers.
type answersFile struct {
	Answers []store.QuestionAnswer `yaml:"answers"`
}

func newGenerateCmd(opts *options) *cobra.Command {
	var answersPath string

	cmd := &cobra.Command{
		Use:   "generate [workshop]",
		Short: "Draft canvas content from questionnaire answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var answers []store.QuestionAnswer
			if answersPath != "" {
				data, err := os.ReadFile(answersPath) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to read answers: %w", err)
				}
				var f answersFile
				if err := yaml.Unmarshal(data, &f); err != nil {
					return fmt.Errorf("failed to unmarshal answers: %w", err)
				}
				answers = f.Answers
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			sections, err := a.coach.GenerateInitialContent(cmd.Context(), args[0], answers)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(struct {
				Sections []canvas.GeneratedSection `yaml:"sections"`
			}{sections})
		},
	}

	cmd.Flags().StringVar(&answersPath, "answers", "", "YAML file with questionnaire answers")
	return cmd
}

func newFeedbackCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback [submission]",
		Short: "Generate per-section and overall feedback for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.coach.GenerateFeedback(cmd.Context(), args[0]); err != nil {
				return err
			}
			sub, err := a.store.GetSubmission(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSubmission(cmd.OutOrStdout(), sub)
			return nil
		},
	}
}
