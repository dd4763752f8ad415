package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"resforge/internal/emit"
	"resforge/internal/engine"
	"resforge/internal/profile"
)

func newGenerateCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "generate [resource...]",
		Short: "Render and write the artifacts of the named resources, or of all",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.load()
			if err != nil {
				return err
			}
			reqs, err := a.requests(ws, args, dryRun)
			if err != nil {
				return err
			}
			results, err := ws.engine.GenerateAll(cmd.Context(), reqs)
			out := cmd.OutOrStdout()
			for i, res := range results {
				if res == nil {
					continue
				}
				report(out, reqs[i].Raw.Name, res)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be written without touching files")
	return cmd
}

func report(w io.Writer, resource string, res *engine.Result) {
	if m := res.Manifest; m != nil {
		fmt.Fprintf(w, "%s (run %s): %d written, %d unchanged, %d conflicts, %d skipped\n",
			resource, res.RunID,
			m.Count(emit.StatusWritten), m.Count(emit.StatusUnchanged),
			m.Count(emit.StatusConflict), m.Count(emit.StatusSkipped))
		for _, e := range m.Entries {
			if e.Status != emit.StatusUnchanged {
				fmt.Fprintf(w, "  %-9s %s\n", e.Status, e.Path)
			}
		}
		if c := m.Conflicts(); len(c) > 0 {
			fmt.Fprintf(w, "  %d file(s) differ from the rendered content and were kept; use --force to overwrite\n", len(c))
		}
	} else {
		fmt.Fprintf(w, "%s (run %s): nothing written\n", resource, res.RunID)
	}
	printProblems(w, resource, res.Problems)
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [resource...]",
		Short: "Check specs against the profile without rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.load()
			if err != nil {
				return err
			}
			reqs, err := a.requests(ws, args, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var errs []error
			for _, r := range reqs {
				res, err := ws.engine.Validate(a.cfg.Profile, r.Raw, nil)
				if res == nil {
					return err
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", r.Raw.Name, err))
					fmt.Fprintf(out, "%s: invalid\n", r.Raw.Name)
				} else {
					fmt.Fprintf(out, "%s: ok (%s, %d fields)\n", r.Raw.Name, res.Naming.Plural, len(res.Derived.Fields()))
				}
				printProblems(out, r.Raw.Name, res.Problems)
			}
			return errors.Join(errs...)
		},
	}
}

func newProfilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the registered profiles and their templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range profile.Names() {
				p, err := profile.Lookup(name)
				if err != nil {
					return err
				}
				marker := " "
				if name == a.cfg.Profile {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s targets=%v\n", marker, p.Name, p.Targets())
				for _, t := range p.Templates.Templates() {
					fmt.Fprintf(out, "    %-10s %s\n", t.Kind, t.Target)
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "resforge", version)
		},
	}
}
