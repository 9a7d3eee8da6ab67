package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/canvascoach/internal/coach"
	"github.com/spf13/cobra"
)

func newWorkshopCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workshop",
		Short: "Manage workshop definitions",
	}

	importCmd := &cobra.Command{
		Use:   "import [glob]",
		Short: "Import workshop definitions (YAML or JSON); ** matches nested directories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			c := coach.New(a.store, nil, a.cfg, a.obs, a.bus)
			res, err := c.ImportWorkshops(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range res.Imported {
				fmt.Fprintf(out, "Imported %s\n", id)
			}
			paths := make([]string, 0, len(res.Failed))
			for p := range res.Failed {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Fprintf(out, "Skipped %s: %v\n", p, res.Failed[p])
			}
			if len(res.Imported) == 0 && len(res.Failed) == 0 {
				fmt.Fprintln(out, "No workshop files matched.")
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d file(s) could not be imported", len(res.Failed))
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workshops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			workshops, err := a.store.ListWorkshops(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(workshops) == 0 {
				fmt.Fprintln(out, "No workshops found.")
				return nil
			}
			for _, w := range workshops {
				fmt.Fprintf(out, "%-24s %-32s %s (%d sections)\n", w.ID, w.Title, w.CanvasType, len(w.Sections))
			}
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a workshop definition without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := coach.LoadWorkshop(args[0])
			if err != nil {
				return err
			}
			res := coach.Validate(w)
			out := cmd.OutOrStdout()
			for _, warning := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			if !res.Valid {
				return fmt.Errorf("invalid workshop: %s", strings.Join(res.Errors, "; "))
			}
			fmt.Fprintf(out, "%s is valid\n", w.ID)
			return nil
		},
	}

	cmd.AddCommand(importCmd, listCmd, validateCmd)
	return cmd
}
