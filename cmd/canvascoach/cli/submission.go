package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/canvascoach/internal/coach"
	"github.com/felixgeelhaar/canvascoach/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// canvasFile is the on-disk form of a participant's canvas.
type canvasFile struct {
	Sections []struct {
		SectionID string   `yaml:"section_id"`
		Items     []string `yaml:"items"`
		Text      string   `yaml:"text"`
	} `yaml:"sections"`
}

func loadCanvas(path string) ([]store.SectionContent, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas file: %w", err)
	}
	var f canvasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal canvas: %w", err)
	}
	out := make([]store.SectionContent, 0, len(f.Sections))
	for _, s := range f.Sections {
		c := store.SectionContent{SectionID: s.SectionID, Text: s.Text}
		if s.Items != nil {
			c.Items = s.Items
		}
		out = append(out, c)
	}
	return out, nil
}

func newSubmissionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submission",
		Short: "Manage canvas submissions",
	}

	var participant, canvasPath string
	createCmd := &cobra.Command{
		Use:   "create [workshop]",
		Short: "Create a submission from a canvas file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := loadCanvas(canvasPath)
			if err != nil {
				return err
			}
			a, err := opts.openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			c := coach.New(a.store, nil, a.cfg, a.obs, a.bus)
			sub, err := c.CreateSubmission(cmd.Context(), args[0], participant, content)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sub.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&participant, "participant", "", "Participant ID")
	createCmd.Flags().StringVar(&canvasPath, "canvas", "", "YAML file with the canvas sections")
	_ = createCmd.MarkFlagRequired("canvas")

	showCmd := &cobra.Command{
		Use:   "show [submission]",
		Short: "Show a submission with its session and feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			sub, err := a.store.GetSubmission(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSubmission(cmd.OutOrStdout(), sub)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list [workshop]",
		Short: "List submissions of a workshop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			subs, err := a.store.ListSubmissions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range subs {
				session := "-"
				if s.HasSession() {
					session = s.SessionID
				}
				fmt.Fprintf(out, "%-38s %-16s %-10s %s\n", s.ID, s.ParticipantID, s.FeedbackStatus, session)
			}
			return nil
		},
	}

	cmd.AddCommand(createCmd, showCmd, listCmd)
	return cmd
}

func printSubmission(out io.Writer, sub *store.Submission) {
	fmt.Fprintf(out, "Submission: %s\n", sub.ID)
	fmt.Fprintf(out, "Workshop:   %s\n", sub.WorkshopID)
	if sub.ParticipantID != "" {
		fmt.Fprintf(out, "Participant: %s\n", sub.ParticipantID)
	}
	if sub.HasSession() {
		fmt.Fprintf(out, "Session:    %s (last used %s)\n", sub.SessionID, sub.SessionLastUpdated.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "Session:    none")
	}
	fmt.Fprintf(out, "Feedback:   %s\n", sub.FeedbackStatus)

	if sub.Suggestions == nil {
		return
	}
	fmt.Fprintln(out)
	for _, f := range sub.Suggestions.SectionFeedback {
		fmt.Fprintf(out, "## %s\n%s\n\n", f.SectionID, f.Feedback)
	}
	fmt.Fprintf(out, "## Overall\n%s\n", sub.Suggestions.OverallFeedback)
}
