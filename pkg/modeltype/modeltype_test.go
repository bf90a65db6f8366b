package modeltype_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/modeltype"
	"github.com/goliatone/go-modelgen/pkg/projection"
	"github.com/goliatone/go-modelgen/pkg/schema"
	"github.com/goliatone/go-modelgen/pkg/testsupport"
)

const manifestYAML = `
models:
  - name: Author
    fields:
      - name: name
        type: CharField
      - name: bio
        type: TextField
        blank: true
  - name: BlogPost
    computed: [word_count]
    fields:
      - name: title
        type: CharField
      - name: author
        type: ForeignKey
        related: Author
    prefetch:
      detail:
        - author: [bio]
        - word_count
    methods:
      - name: publish
        args:
          - name: reviewer
            type: ForeignKey
            related: Author
      - name: trending
        static: true
        path: hot
`

func loadManifest(t *testing.T) *schema.Manifest {
	t.Helper()
	manifest, err := schema.LoadFS(testsupport.ManifestFS(map[string]string{"blog.yaml": manifestYAML}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return manifest
}

func TestRegistry_RegisterManifest(t *testing.T) {
	manifest := loadManifest(t)
	registry := modeltype.NewRegistry()

	types, err := registry.RegisterManifest(manifest, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(types))
	}

	post, ok := registry.Lookup("BlogPost")
	if !ok {
		t.Fatalf("BlogPost not registered")
	}
	if post.BasePath() != "blog_post" {
		t.Fatalf("expected snake_case base path, got %q", post.BasePath())
	}
	if diff := cmp.Diff([]string{"id", "title", "author_id"}, post.Marshaller().FieldNames()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	shapes := post.Shapes()
	if len(shapes) != 1 || shapes[0].Name != "detail" {
		t.Fatalf("unexpected shapes %+v", shapes)
	}
	if diff := cmp.Diff([]string{"id", "title", "author_id", "author", "word_count"}, shapes[0].Marshaller.FieldNames()); diff != "" {
		t.Fatalf("shape fields mismatch (-want +got):\n%s", diff)
	}

	methods, err := projection.Methods(post)
	if err != nil {
		t.Fatalf("methods: %v", err)
	}
	want := []projection.ObjectMethod{
		{
			Name:      "publish",
			URL:       "blog_post/publish/",
			Signature: []projection.TypeDeclaration{{Name: "reviewer_id", Type: "number"}},
			Returns:   "any",
		},
		{Name: "trending", URL: "blog_post/hot/", Static: true, Signature: []projection.TypeDeclaration{}, Returns: "any"},
	}
	if diff := cmp.Diff(want, methods); diff != "" {
		t.Fatalf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_ReusesHandleForSameConfiguration(t *testing.T) {
	manifest := loadManifest(t)
	registry := modeltype.NewRegistry()
	author, _ := manifest.Catalog.Get("Author")

	first, err := registry.RegisterModel(author, marshal.Config{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := registry.RegisterModel(author, marshal.Config{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same handle")
	}

	_, err = registry.RegisterModel(author, marshal.Config{Computed: []string{"age"}})
	if !errors.Is(err, modeltype.ErrDuplicateType) {
		t.Fatalf("expected duplicate type error, got %v", err)
	}
}

func TestRegistry_ValidatorFromSpec(t *testing.T) {
	manifest := loadManifest(t)
	registry := modeltype.NewRegistry()
	validator := marshal.NewValidator(func(context.Context, map[string]any) error {
		return marshal.NewNonFieldError("nope")
	}, "title")

	types, err := registry.RegisterManifest(manifest, map[string]*marshal.Validator{"BlogPost": validator})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = types[1].Marshaller().Decode(context.Background(), map[string]any{"title": "x", "author_id": 1})
	var verr *marshal.ValidationError
	if !errors.As(err, &verr) || verr.NonField[0] != "nope" {
		t.Fatalf("expected validator rejection, got %v", err)
	}

	bad := marshal.NewValidator(func(context.Context, map[string]any) error { return nil }, "missing")
	if _, err := modeltype.NewRegistry().RegisterManifest(manifest, map[string]*marshal.Validator{"Author": bad}); !errors.Is(err, marshal.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestInterface_Routes(t *testing.T) {
	manifest := loadManifest(t)
	registry := modeltype.NewRegistry()
	types, err := registry.RegisterManifest(manifest, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := modeltype.NewInterface(" "); !errors.Is(err, modeltype.ErrMissingDest) {
		t.Fatalf("expected missing dest error, got %v", err)
	}
	iface, err := modeltype.NewInterface("client/api.ts")
	if err != nil {
		t.Fatalf("interface: %v", err)
	}
	iface.AddModelType(types[1])
	iface.AddObjectType(modeltype.NewObjectType("Stats", "", nil, modeltype.RemoteMethod{Name: "dailyTotals", Static: true}))

	var paths []string
	for _, route := range iface.Routes() {
		paths = append(paths, string(route.Kind)+" "+route.Path)
	}
	want := []string{
		"collection blog_post/",
		"detail blog_post/<pk>/",
		"instance_method blog_post/<pk>/publish/",
		"static_method blog_post/hot/",
		"static_method stats/daily_totals/",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_LenientOverrides(t *testing.T) {
	const typo = `
models:
  - name: Note
    fields:
      - name: body
        type: TextField
    overrides:
      bdy:
        required: false
`
	load := func() *schema.Manifest {
		manifest, err := schema.LoadFS(testsupport.ManifestFS(map[string]string{"note.yaml": typo}))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return manifest
	}

	if _, err := modeltype.NewRegistry().RegisterManifest(load(), nil); !errors.Is(err, marshal.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown override, got %v", err)
	}
	types, err := modeltype.NewRegistry(modeltype.WithLenientOverrides()).RegisterManifest(load(), nil)
	if err != nil {
		t.Fatalf("lenient register: %v", err)
	}
	if !types[0].Config().LenientOverrides {
		t.Fatalf("expected lenient config on the handle")
	}
}

const orderedManifest = `
models:
  - name: Profile
    fields:
      - name: handle
        type: CharField
  - name: Settings
    fields:
      - name: theme
        type: CharField
  - name: Account
    fields:
      - name: settings
        type: OneToOneField
        related: Settings
      - name: profile
        type: OneToOneField
        related: Profile
    proxies:
      settings: [theme]
      profile: [handle]
  - name: Post
    fields:
      - name: title
        type: CharField
      - name: author
        type: ForeignKey
        related: Profile
      - name: editor
        type: ForeignKey
        related: Profile
        null: true
    prefetch:
      summary: [author]
      detail:
        - editor: [handle]
          author: [handle]
`

func TestRegistry_KeepsManifestOrder(t *testing.T) {
	manifest, err := schema.LoadFS(testsupport.ManifestFS(map[string]string{"ordered.yaml": orderedManifest}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	registry := modeltype.NewRegistry()
	if _, err := registry.RegisterManifest(manifest, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	account, _ := registry.Lookup("Account")
	if diff := cmp.Diff([]string{"id", "theme", "handle", "settings_id", "profile_id"}, account.Marshaller().FieldNames()); diff != "" {
		t.Fatalf("proxy order mismatch (-want +got):\n%s", diff)
	}

	post, _ := registry.Lookup("Post")
	shapes := post.Shapes()
	var names []string
	for _, shape := range shapes {
		names = append(names, shape.Name)
	}
	if diff := cmp.Diff([]string{"summary", "detail"}, names); diff != "" {
		t.Fatalf("shape order mismatch (-want +got):\n%s", diff)
	}
	want := []string{"id", "title", "author_id", "editor_id", "editor", "author"}
	if diff := cmp.Diff(want, shapes[1].Marshaller.FieldNames()); diff != "" {
		t.Fatalf("nested order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_RejectsDuplicateShapeNames(t *testing.T) {
	manifest := loadManifest(t)
	post, _ := manifest.Catalog.Get("BlogPost")
	_, err := modeltype.NewRegistry().RegisterModel(post, marshal.Config{},
		modeltype.WithShape("detail", marshal.PrefetchOne("author")),
		modeltype.WithShape("detail", marshal.PrefetchOne("author")),
	)
	if err == nil {
		t.Fatalf("expected duplicate shape error")
	}
}

func TestRegistry_ConcurrentRegisterModel(t *testing.T) {
	manifest := loadManifest(t)
	registry := modeltype.NewRegistry()
	author, _ := manifest.Catalog.Get("Author")
	post, _ := manifest.Catalog.Get("BlogPost")

	const workers = 16
	var wg sync.WaitGroup
	handles := make([]*modeltype.ModelType, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			model := author
			if i%2 == 1 {
				model = post
			}
			handles[i], errs[i] = registry.RegisterModel(model, marshal.Config{})
			if errs[i] == nil {
				registry.Types()
			}
		}(i)
	}
	wg.Wait()

	for i := range handles {
		if errs[i] != nil {
			t.Fatalf("register %d: %v", i, errs[i])
		}
		if want := handles[i%2]; handles[i] != want {
			t.Fatalf("worker %d received a different handle for %s", i, handles[i].TypeName())
		}
	}
	if diff := cmp.Diff([]string{"Author", "BlogPost"}, registry.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if got := len(registry.Types()); got != 2 {
		t.Fatalf("expected 2 types, got %d", got)
	}
}
