package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"resforge/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation and generation API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			store := api.NewStore(ws.doc, ws.catalogs, 0)
			srv := api.NewServer(ws.engine, store, api.Options{
				Profile:     a.cfg.Profile,
				OutDir:      a.cfg.OutDir,
				SpecDir:     a.cfg.SpecDir,
				SpecPattern: a.cfg.SpecPattern,
				EnumsDir:    a.cfg.EnumsDir,
				Strict:      a.cfg.Strict,
			}, a.log)
			a.log.Info("starting server",
				zap.String("profile", a.cfg.Profile),
				zap.Int("resources", len(ws.doc.Resources)))
			return srv.Run(cmd.Context(), ":"+a.cfg.Port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "8080", "listen port")
	return cmd
}
