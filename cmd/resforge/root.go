package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"resforge/internal/config"
	"resforge/internal/diag"
	"resforge/internal/dsl"
	"resforge/internal/engine"
	"resforge/internal/logging"
	"resforge/internal/reference"
	"resforge/internal/typereg"
)

// app is shared by every subcommand once the root has loaded configuration.
type app struct {
	configPath string
	cfg        config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}
	root := &cobra.Command{
		Use:           "resforge",
		Short:         "Generate consistent service artifacts from resource specs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "config file (default "+config.DefaultPath+" when present)")
	f.String("profile", a.cfg.Profile, "generation profile")
	f.String("specs", a.cfg.SpecDir, "spec directory")
	f.String("pattern", a.cfg.SpecPattern, "spec file glob, relative to the spec directory")
	f.String("enums", a.cfg.EnumsDir, "enum catalog directory")
	f.StringP("out", "o", a.cfg.OutDir, "output root")
	f.Bool("force", false, "overwrite files that differ from the rendered content")
	f.Bool("strict", false, "write nothing when artifacts disagree")
	f.Int("workers", a.cfg.Workers, "render and emit concurrency")
	f.String("log-level", a.cfg.LogLevel, "debug, info, warn or error")
	f.String("log-format", a.cfg.LogFormat, "console or json")

	root.AddCommand(
		newGenerateCmd(a),
		newValidateCmd(a),
		newProfilesCmd(a),
		newServeCmd(a),
		newMigrateCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup layers flags that were set explicitly over file and environment.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
	str("profile", &cfg.Profile)
	str("specs", &cfg.SpecDir)
	str("pattern", &cfg.SpecPattern)
	str("enums", &cfg.EnumsDir)
	str("out", &cfg.OutDir)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	boolean("force", &cfg.Force)
	boolean("strict", &cfg.Strict)
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	a.log, err = logging.New(cfg.LogLevel, cfg.LogFormat)
	return err
}

// workspace is a loaded spec set with its engine.
type workspace struct {
	doc      *dsl.Document
	catalogs map[string]reference.Catalog
	engine   *engine.Engine
}

func (a *app) load() (*workspace, error) {
	doc, err := dsl.LoadAll(a.cfg.SpecDir, a.cfg.SpecPattern)
	if err != nil {
		return nil, err
	}
	catalogs := map[string]reference.Catalog{}
	if a.cfg.EnumsDir != "" {
		catalogs, err = reference.LoadCatalogs(a.cfg.EnumsDir)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			a.log.Debug("no enum catalogs", zap.String("dir", a.cfg.EnumsDir))
			catalogs = map[string]reference.Catalog{}
		case err != nil:
			return nil, err
		}
	}
	reg := typereg.New()
	reference.Register(reg, catalogs)
	doc.Register(reg)
	a.log.Debug("specs loaded",
		zap.String("dir", a.cfg.SpecDir),
		zap.Int("resources", len(doc.Resources)),
		zap.Int("catalogs", len(catalogs)))
	return &workspace{doc: doc, catalogs: catalogs, engine: engine.New(reg, a.log, a.cfg.Workers)}, nil
}

// requests builds one request per named resource, or per loaded resource
// when names is empty.
func (a *app) requests(ws *workspace, names []string, dryRun bool) ([]engine.Request, error) {
	var reqs []engine.Request
	add := func(name string) error {
		raw, ok := ws.doc.Resource(name)
		if !ok {
			return fmt.Errorf("resource %q not found in %s", name, a.cfg.SpecDir)
		}
		reqs = append(reqs, engine.Request{
			Raw:     raw,
			Profile: a.cfg.Profile,
			OutDir:  a.cfg.OutDir,
			Force:   a.cfg.Force,
			DryRun:  dryRun,
			Strict:  a.cfg.Strict,
		})
		return nil
	}
	if len(names) == 0 {
		for _, r := range ws.doc.Resources {
			names = append(names, r.Name)
		}
	}
	for _, n := range names {
		if err := add(n); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

func printProblems(w io.Writer, resource string, ps diag.Problems) {
	ps = append(diag.Problems(nil), ps...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Severity < ps[j].Severity })
	for _, p := range ps {
		fmt.Fprintf(w, "  %s %s: %s\n", strings.ToUpper(string(p.Severity)), resource, p.Error())
	}
}
