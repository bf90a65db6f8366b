package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	modelgen "github.com/goliatone/go-modelgen"
	"github.com/goliatone/go-modelgen/internal/config"
	"github.com/goliatone/go-modelgen/internal/logging"
	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/modeltype"
	"github.com/goliatone/go-modelgen/pkg/openapi"
	"github.com/goliatone/go-modelgen/pkg/orchestrator"
	"github.com/goliatone/go-modelgen/pkg/projection"
	"github.com/goliatone/go-modelgen/pkg/schema"
	"github.com/goliatone/go-modelgen/pkg/store"
	"github.com/goliatone/go-modelgen/pkg/store/gormstore"
	"github.com/goliatone/go-modelgen/pkg/store/memory"
	"github.com/goliatone/go-modelgen/pkg/transpile"
)

// errInvalid is returned by validate when the payload is rejected.
var errInvalid = errors.New("payload rejected")

// settingFlags maps CLI flags onto dotted config keys.
var settingFlags = map[string]string{
	"manifests":   "manifests",
	"out":         "out",
	"openapi":     "openapi",
	"prefix":      "prefix",
	"title":       "title",
	"version":     "version",
	"templates":   "templates",
	"strict":      "strict",
	"lenient":     "lenient",
	"interactive": "interactive",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-file":    "log.file",
	"dsn":         "database.dsn",
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, surveyPrompter{}); err != nil {
		fmt.Fprintf(os.Stderr, "modelgen: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, prompter Prompter) error {
	command := "generate"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "generate":
		return runGenerate(ctx, args, stdout, stderr, prompter)
	case "validate":
		return runValidate(ctx, args, stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q (want generate or validate)", command)
	}
}

type settings struct {
	flags      *flag.FlagSet
	configPath *string
}

func newSettings(name string, stderr io.Writer) settings {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	s := settings{flags: fs, configPath: fs.String("config", "", "config file (yaml, json or toml)")}
	fs.String("manifests", "", "directory holding model manifests")
	fs.String("out", "", "TypeScript output path")
	fs.String("openapi", "", "OpenAPI output path (skipped if empty)")
	fs.String("prefix", "", "OpenAPI path prefix")
	fs.String("title", "", "OpenAPI document title")
	fs.String("version", "", "OpenAPI document version")
	fs.String("templates", "", "directory overriding the embedded templates")
	fs.Bool("strict", false, "fail on rules without a type mapping")
	fs.Bool("lenient", false, "ignore overrides that match no field")
	fs.Bool("interactive", false, "pick model types interactively")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (console or json)")
	fs.String("log-file", "", "rotating log file path")
	fs.String("dsn", "", "MySQL DSN used for relation and uniqueness checks")
	return s
}

// load resolves the configuration, letting explicitly set flags win.
func (s settings) load() (config.Config, error) {
	overrides := map[string]any{}
	s.flags.Visit(func(f *flag.Flag) {
		key, ok := settingFlags[f.Name]
		if !ok {
			return
		}
		if getter, ok := f.Value.(flag.Getter); ok {
			overrides[key] = getter.Get()
		}
	})
	return config.Load(*s.configPath, overrides)
}

func registryOptions(cfg config.Config, logger *zap.Logger, builder ...marshal.BuilderOption) []modeltype.Option {
	options := []modeltype.Option{modeltype.WithLogger(logger), modeltype.WithBuilderOptions(builder...)}
	if cfg.Lenient {
		options = append(options, modeltype.WithLenientOverrides())
	}
	return options
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer, prompter Prompter) error {
	s := newSettings("generate", stderr)
	models := s.flags.String("models", "", "comma separated model types (default: all)")
	if err := s.flags.Parse(args); err != nil {
		return err
	}
	cfg, err := s.load()
	if err != nil {
		return err
	}
	logger := logging.New("modelgen", cfg.Log)
	defer func() { _ = logger.Sync() }()

	manifest, err := loadManifests(ctx, cfg.Manifests)
	if err != nil {
		return fmt.Errorf("load manifests: %w", err)
	}
	selected := splitList(*models)
	if cfg.Interactive {
		names := make([]string, 0, len(manifest.Specs))
		for _, spec := range manifest.Specs {
			names = append(names, spec.Name)
		}
		if selected, err = prompter.SelectModels(ctx, names); err != nil {
			return err
		}
	}

	transpileOpts := []transpile.Option{transpile.WithLogger(logger), transpile.WithTemplatesDir(cfg.Templates)}
	if cfg.Strict {
		transpileOpts = append(transpileOpts, transpile.WithProjectionOptions(projection.WithStrict()))
	}
	gen := orchestrator.New(
		orchestrator.WithLogger(logger),
		orchestrator.WithRegistryOptions(registryOptions(cfg, logger)...),
		orchestrator.WithTranspileOptions(transpileOpts...),
	)

	req := orchestrator.Request{Manifest: manifest, Dest: cfg.Out, Models: selected}
	if cfg.OpenAPI != "" {
		req.OpenAPI = &openapi.Info{Title: cfg.Title, Version: cfg.Version, Prefix: cfg.Prefix}
	}
	result, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}

	written, err := writeOutput(ctx, cfg, prompter, cfg.Out, []byte(result.TypeScript))
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(stdout, "wrote %s (%d model types)\n", cfg.Out, len(result.Interface.ModelTypes()))
	}
	if result.OpenAPI != nil {
		payload, err := json.MarshalIndent(result.OpenAPI, "", "  ")
		if err != nil {
			return fmt.Errorf("encode openapi: %w", err)
		}
		written, err := writeOutput(ctx, cfg, prompter, cfg.OpenAPI, append(payload, '\n'))
		if err != nil {
			return err
		}
		if written {
			fmt.Fprintf(stdout, "wrote %s (%d paths)\n", cfg.OpenAPI, result.OpenAPI.Paths.Len())
		}
	}
	return nil
}

func writeOutput(ctx context.Context, cfg config.Config, prompter Prompter, path string, data []byte) (bool, error) {
	if cfg.Interactive {
		if _, err := os.Stat(path); err == nil {
			ok, err := prompter.ConfirmOverwrite(ctx, path)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func runValidate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s := newSettings("validate", stderr)
	model := s.flags.String("model", "", "model type the payload targets")
	partial := s.flags.Bool("partial", false, "treat the payload as a partial update")
	instancePath := s.flags.String("instance", "", "JSON file holding the persisted instance being updated")
	fixtures := s.flags.String("fixtures", "", "JSON file of rows per model for an in-memory store")
	if err := s.flags.Parse(args); err != nil {
		return err
	}
	if *model == "" || s.flags.NArg() != 1 {
		return errors.New("usage: modelgen validate -model <Type> [flags] payload.json")
	}
	cfg, err := s.load()
	if err != nil {
		return err
	}
	logger := logging.New("modelgen", cfg.Log)
	defer func() { _ = logger.Sync() }()

	manifest, err := loadManifests(ctx, cfg.Manifests)
	if err != nil {
		return fmt.Errorf("load manifests: %w", err)
	}
	backend, closeStore, err := openStore(cfg, manifest, *fixtures, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var builder []marshal.BuilderOption
	if backend != nil {
		builder = append(builder, marshal.WithStore(backend))
	}
	registry := modeltype.NewRegistry(registryOptions(cfg, logger, builder...)...)
	if _, err := registry.RegisterManifest(manifest, nil); err != nil {
		return err
	}
	mt, ok := registry.Lookup(*model)
	if !ok {
		return fmt.Errorf("unknown model type %q", *model)
	}

	var payload map[string]any
	if err := readJSON(s.flags.Arg(0), &payload); err != nil {
		return err
	}
	var opts []marshal.DecodeOption
	if *partial {
		opts = append(opts, marshal.Partial())
	}
	if *instancePath != "" {
		var instance marshal.Record
		if err := readJSON(*instancePath, &instance); err != nil {
			return err
		}
		opts = append(opts, marshal.WithInstance(instance))
	}

	attrs, err := mt.Marshaller().Decode(ctx, payload, opts...)
	var verr *marshal.ValidationError
	if errors.As(err, &verr) {
		if encodeErr := writeJSON(stdout, verr.Map()); encodeErr != nil {
			return encodeErr
		}
		return errInvalid
	}
	if err != nil {
		return err
	}
	return writeJSON(stdout, attrs)
}

// openStore picks the storage backend for validate: MySQL when a DSN is
// configured, an in-memory store seeded from fixtures, or none.
func openStore(cfg config.Config, manifest *schema.Manifest, fixtures string, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.Database.DSN != "" {
		db, err := gormstore.Open(cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return gormstore.New(db), func() { _ = sqlDB.Close() }, nil
	}
	if fixtures == "" {
		return nil, func() {}, nil
	}

	var rows map[string][]marshal.Record
	if err := readJSON(fixtures, &rows); err != nil {
		return nil, nil, err
	}
	mem := memory.New()
	for name, records := range rows {
		model, ok := manifest.Catalog.Get(name)
		if !ok {
			return nil, nil, fmt.Errorf("fixtures reference unknown model %q", name)
		}
		for _, record := range records {
			if err := mem.Put(model, record); err != nil {
				return nil, nil, err
			}
		}
	}
	return mem, func() {}, nil
}

// loadManifests reads a manifest directory, a single manifest file or a
// manifest URL.
func loadManifests(ctx context.Context, location string) (*schema.Manifest, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		loader := modelgen.NewLoader(schema.WithHTTPFallback(30 * time.Second))
		return schema.LoadSources(ctx, loader, schema.SourceFromURL(location))
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return schema.LoadFS(os.DirFS(location))
	}
	return schema.LoadSources(ctx, modelgen.NewLoader(), schema.SourceFromFile(location))
}

func readJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
