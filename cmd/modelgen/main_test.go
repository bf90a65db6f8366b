package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const blogManifest = `
models:
  - name: Author
    fields:
      - name: name
        type: CharField
      - name: email
        type: EmailField
        unique: true
  - name: Post
    fields:
      - name: title
        type: CharField
        maxLength: 20
      - name: author
        type: ForeignKey
        related: Author
`

type fakePrompter struct {
	selected  []string
	overwrite bool
	asked     []string
}

func (p *fakePrompter) SelectModels(_ context.Context, names []string) ([]string, error) {
	p.asked = append(p.asked, strings.Join(names, ","))
	return p.selected, nil
}

func (p *fakePrompter) ConfirmOverwrite(_ context.Context, path string) (bool, error) {
	p.asked = append(p.asked, "overwrite "+filepath.Base(path))
	return p.overwrite, nil
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "models", "blog.yaml"), blogManifest)
	return dir
}

func TestRun_Generate(t *testing.T) {
	dir := workspace(t)
	out := filepath.Join(dir, "web", "api.ts")
	spec := filepath.Join(dir, "web", "openapi.json")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"generate",
		"-manifests", filepath.Join(dir, "models"),
		"-out", out,
		"-openapi", spec,
		"-title", "Blog",
		"-log-level", "error",
	}, &stdout, &stderr, &fakePrompter{})
	if err != nil {
		t.Fatalf("run: %v (stderr: %s)", err, stderr.String())
	}

	source, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read client: %v", err)
	}
	if !strings.Contains(string(source), "export class Post implements PostFields") {
		t.Fatalf("unexpected client:\n%s", source)
	}

	var doc map[string]any
	raw, err := os.ReadFile(spec)
	if err != nil {
		t.Fatalf("read openapi: %v", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	if doc["info"].(map[string]any)["title"] != "Blog" {
		t.Fatalf("unexpected info %v", doc["info"])
	}
	if !strings.Contains(stdout.String(), "wrote "+out+" (2 model types)") {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
}

func TestRun_GenerateInteractive(t *testing.T) {
	dir := workspace(t)
	out := writeFile(t, filepath.Join(dir, "api.ts"), "// stale\n")
	prompter := &fakePrompter{selected: []string{"Author"}, overwrite: false}

	err := run(context.Background(), []string{
		"-manifests", filepath.Join(dir, "models"),
		"-out", out,
		"-interactive",
		"-log-level", "error",
	}, &bytes.Buffer{}, &bytes.Buffer{}, prompter)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if diff := cmp.Diff([]string{"Author,Post", "overwrite api.ts"}, prompter.asked); diff != "" {
		t.Fatalf("prompts mismatch (-want +got):\n%s", diff)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "// stale\n" {
		t.Fatalf("declined overwrite should keep the file")
	}
}

func TestRun_Validate(t *testing.T) {
	dir := workspace(t)
	fixtures := writeFile(t, filepath.Join(dir, "fixtures.json"), `{"Author": [{"id": 1, "name": "Ada", "email": "ada@example.com"}]}`)
	valid := writeFile(t, filepath.Join(dir, "valid.json"), `{"title": "Engines", "author_id": 1}`)
	invalid := writeFile(t, filepath.Join(dir, "invalid.json"), `{"title": "Engines", "author_id": 9}`)
	base := []string{"validate", "-manifests", filepath.Join(dir, "models", "blog.yaml"), "-fixtures", fixtures, "-model", "Post", "-log-level", "error"}

	var stdout bytes.Buffer
	if err := run(context.Background(), append(append([]string{}, base...), valid), &stdout, &bytes.Buffer{}, nil); err != nil {
		t.Fatalf("validate: %v", err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &attrs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if attrs["title"] != "Engines" {
		t.Fatalf("unexpected attrs %v", attrs)
	}

	stdout.Reset()
	err := run(context.Background(), append(append([]string{}, base...), invalid), &stdout, &bytes.Buffer{}, nil)
	if !errors.Is(err, errInvalid) {
		t.Fatalf("expected errInvalid, got %v", err)
	}
	var errs map[string][]string
	if err := json.Unmarshal(stdout.Bytes(), &errs); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if diff := cmp.Diff(map[string][]string{"author_id": {`Invalid pk "9" - object does not exist.`}}, errs); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"publish"}, &bytes.Buffer{}, &bytes.Buffer{}, nil); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

func TestSplitList(t *testing.T) {
	if diff := cmp.Diff([]string{"Author", "Post"}, splitList(" Author, ,Post ")); diff != "" {
		t.Fatalf("split mismatch (-want +got):\n%s", diff)
	}
	if splitList("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
