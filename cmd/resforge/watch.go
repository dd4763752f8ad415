package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"resforge/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Regenerate every resource when a spec file changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			regenerate := func(ctx context.Context, _ []string) error {
				ws, err := a.load()
				if err != nil {
					return err
				}
				reqs, err := a.requests(ws, nil, false)
				if err != nil {
					return err
				}
				results, err := ws.engine.GenerateAll(ctx, reqs)
				for i, res := range results {
					if res != nil {
						report(cmd.OutOrStdout(), reqs[i].Raw.Name, res)
					}
				}
				return err
			}
			if err := regenerate(cmd.Context(), nil); err != nil {
				a.log.Warn("initial generation failed", zap.Error(err))
			}
			w := watch.New(a.cfg.SpecDir, a.cfg.SpecPattern, a.cfg.WatchDebounce, regenerate, a.log)
			if err := w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
