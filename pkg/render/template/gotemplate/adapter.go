package gotemplate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/flosch/pongo2/v6"
	gotemplatepkg "github.com/goliatone/go-template"

	"github.com/goliatone/go-modelgen/pkg/render/template"
)

// Option configures the go-template adapter before construction.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	extension  string
	templateFn map[string]any
	globalData map[string]any
	engineOpts []gotemplatepkg.Option
}

// WithBaseDir configures the underlying engine to load templates from a base
// directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS configures the underlying engine to load templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension overrides the default template extension used by the engine.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithTemplateFunc registers helper functions or filters when the engine loads.
func WithTemplateFunc(funcs map[string]any) Option {
	return func(cfg *config) {
		for name, fn := range funcs {
			name = strings.TrimSpace(name)
			if name == "" || fn == nil {
				continue
			}
			if cfg.templateFn == nil {
				cfg.templateFn = make(map[string]any, len(funcs))
			}
			cfg.templateFn[name] = fn
		}
	}
}

// WithGlobalData seeds global context values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		for key, value := range data {
			if cfg.globalData == nil {
				cfg.globalData = make(map[string]any, len(data))
			}
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithGoTemplateOptions forwards raw go-template options. They are applied
// after the adapter's own settings.
func WithGoTemplateOptions(options ...gotemplatepkg.Option) Option {
	return func(cfg *config) {
		cfg.engineOpts = append(cfg.engineOpts, options...)
	}
}

// Engine satisfies the template.TemplateRenderer contract by wrapping the
// go-template engine. The modelgen filters (jsquote, indent) are registered
// next to go-template's defaults.
type Engine struct {
	*gotemplatepkg.Engine
}

var _ template.TemplateRenderer = (*Engine)(nil)

// New constructs an Engine using the provided configuration options.
func New(options ...Option) (*Engine, error) {
	cfg := &config{extension: ".tpl"}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	if cfg.baseDir == "" && cfg.templates == nil {
		return nil, errors.New("gotemplate: need to provide either base dir or fs.FS")
	}

	funcs := map[string]any{
		"jsquote": pongo2.FilterFunction(filterJSQuote),
		"indent":  pongo2.FilterFunction(filterIndent),
	}
	for name, fn := range cfg.templateFn {
		funcs[name] = fn
	}

	engineOpts := []gotemplatepkg.Option{
		gotemplatepkg.WithExtension(cfg.extension),
		gotemplatepkg.WithTemplateFunc(funcs),
	}
	if cfg.baseDir != "" {
		engineOpts = append(engineOpts, gotemplatepkg.WithBaseDir(cfg.baseDir))
	}
	if cfg.templates != nil {
		engineOpts = append(engineOpts, gotemplatepkg.WithFS(cfg.templates))
	}
	if len(cfg.globalData) > 0 {
		engineOpts = append(engineOpts, gotemplatepkg.WithGlobalData(cfg.globalData))
	}
	engineOpts = append(engineOpts, cfg.engineOpts...)

	inner, err := gotemplatepkg.NewRenderer(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("gotemplate: %w", err)
	}
	return &Engine{Engine: inner}, nil
}

// GlobalContext seeds global data. A nil payload is a no-op.
func (e *Engine) GlobalContext(data any) error {
	if e == nil || e.Engine == nil {
		return errors.New("gotemplate: engine is nil")
	}
	if data == nil {
		return nil
	}
	return e.Engine.GlobalContext(data)
}

// filterJSQuote renders the input as a double-quoted string literal.
func filterJSQuote(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	raw, err := json.Marshal(in.String())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:jsquote", OrigError: err}
	}
	return pongo2.AsSafeValue(string(raw)), nil
}

// filterIndent prefixes every non-empty line with param spaces (default 2).
func filterIndent(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	width := 2
	if param != nil && param.IsInteger() {
		width = param.Integer()
	}
	pad := strings.Repeat(" ", width)
	lines := strings.Split(in.String(), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = pad + line
		}
	}
	return pongo2.AsSafeValue(strings.Join(lines, "\n")), nil
}
