package marshal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-modelgen/pkg/schema"
	"github.com/goliatone/go-modelgen/pkg/testsupport"
)

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]map[string]Record
	gets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]map[string]Record)}
}

func (s *fakeStore) put(model *schema.Model, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.rows[model.Name]
	if table == nil {
		table = make(map[string]Record)
		s.rows[model.Name] = table
	}
	table[fmt.Sprint(record[model.PK().AttName()])] = record
}

func (s *fakeStore) Get(_ context.Context, model *schema.Model, pk any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	record, ok := s.rows[model.Name][fmt.Sprint(pk)]
	if !ok {
		return nil, fmt.Errorf("%s %v: %w", model.Name, pk, ErrNotFound)
	}
	return record, nil
}

func (s *fakeStore) Exists(_ context.Context, model *schema.Model, column string, value any, exclude any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.rows[model.Name] {
		if exclude != nil && key == fmt.Sprint(exclude) {
			continue
		}
		if fmt.Sprint(record[column]) == fmt.Sprint(value) {
			return true, nil
		}
	}
	return false, nil
}

func blogCatalog(t *testing.T) *schema.Catalog {
	t.Helper()

	author := &schema.Model{Name: "Author", Fields: []*schema.Field{
		{Name: "name", Type: schema.TypeChar, MaxLength: 50},
		{Name: "bio", Type: schema.TypeText, Blank: true},
	}}
	profile := &schema.Model{Name: "Profile", Fields: []*schema.Field{
		{Name: "website", Type: schema.TypeURL, Null: true},
		{Name: "handle", Type: schema.TypeSlug, Unique: true},
	}}
	account := &schema.Model{Name: "Account", Fields: []*schema.Field{
		{Name: "email", Type: schema.TypeEmail, Unique: true},
		{Name: "profile", Type: schema.TypeOneToOne, Related: "Profile"},
	}}
	post := &schema.Model{Name: "Post", Fields: []*schema.Field{
		{Name: "title", Type: schema.TypeChar, MaxLength: 20},
		{Name: "body", Type: schema.TypeText, Null: true},
		{Name: "rating", Type: schema.TypeInteger, Default: 0, Validators: []string{"min:0", "max:5"}},
		{Name: "published", Type: schema.TypeDateTime, Null: true},
		{Name: "author", Type: schema.TypeForeignKey, Related: "Author"},
		{Name: "editor", Type: schema.TypeForeignKey, Related: "Author", Null: true},
	}}

	catalog, err := schema.NewCatalog(author, profile, account, post)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return catalog
}

func model(t *testing.T, catalog *schema.Catalog, name string) *schema.Model {
	t.Helper()
	m, ok := catalog.Get(name)
	if !ok {
		t.Fatalf("model %s missing", name)
	}
	return m
}

func TestBuild_FieldSetFollowsDeclarationOrder(t *testing.T) {
	catalog := blogCatalog(t)
	post := model(t, catalog, "Post")

	m, err := New(Options{}).Build(post, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	concrete := len(post.ConcreteFields())
	relations := len(post.ForwardRelationFields())
	if got := len(m.Fields()); got != concrete+relations {
		t.Fatalf("expected %d fields, got %d", concrete+relations, got)
	}

	want := []string{"id", "title", "body", "rating", "published", "author_id", "editor_id"}
	if diff := cmp.Diff(want, m.FieldNames()); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_InfersRulesFromMetadata(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	m, err := New(Options{}).Build(post, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	id, _ := m.Field("id")
	if !id.Rule.ReadOnly || id.Rule.Kind != KindInteger {
		t.Fatalf("expected read-only integer id, got %+v", id.Rule)
	}
	title, _ := m.Field("title")
	if !title.Rule.Required || title.Rule.MaxLength != 20 {
		t.Fatalf("unexpected title rule %+v", title.Rule)
	}
	body, _ := m.Field("body")
	if body.Rule.Required || !body.Rule.AllowNull {
		t.Fatalf("nullable body should be optional, got %+v", body.Rule)
	}
	rating, _ := m.Field("rating")
	if rating.Rule.Required {
		t.Fatalf("defaulted rating should be optional")
	}
	if diff := cmp.Diff([]string{"min:0", "max:5"}, rating.Rule.validatorNames()); diff != "" {
		t.Fatalf("validators mismatch (-want +got):\n%s", diff)
	}
	author, _ := m.Field("author_id")
	if author.Group != GroupRelation || author.Rule.Kind != KindInteger || !author.Rule.Required {
		t.Fatalf("unexpected author relation %+v", author)
	}
	editor, _ := m.Field("editor_id")
	if editor.Rule.Required || !editor.Rule.AllowNull {
		t.Fatalf("nullable relation should be optional, got %+v", editor.Rule)
	}
	if field, ok := m.RelationModelField("author_id"); !ok || field.Name != "author" {
		t.Fatalf("expected author_id to map to author relation")
	}
}

func TestBuild_TypeTableBypassesInference(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	b := New(Options{Types: TypeTable{schema.TypeChar: KindString}})
	m, err := b.Build(post, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	title, _ := m.Field("title")
	if title.Rule.MaxLength != 0 || !title.Rule.Required {
		t.Fatalf("registered type should only derive required, got %+v", title.Rule)
	}
}

func TestBuild_OverridesWinOverInference(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	required := true
	readOnly := true
	m, err := New(Options{}).Build(post, Config{Overrides: map[string]schema.Override{
		"body":   {Required: &required},
		"rating": {ReadOnly: &readOnly},
		"author": {Validators: []string{"min:1"}},
	}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	body, _ := m.Field("body")
	if !body.Rule.Required {
		t.Fatalf("override should force required")
	}
	rating, _ := m.Field("rating")
	if !rating.Rule.ReadOnly {
		t.Fatalf("override should force read-only")
	}
	author, _ := m.Field("author_id")
	if diff := cmp.Diff([]string{"min:1"}, author.Rule.validatorNames()); diff != "" {
		t.Fatalf("relation override mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_RejectsUnknownOverrideKeys(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	cfg := Config{Overrides: map[string]schema.Override{"subtitle": {}, "body": {}}}

	_, err := New(Options{}).Build(post, cfg)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if diff := cmp.Diff([]string{"subtitle"}, cfgErr.Fields); diff != "" {
		t.Fatalf("offending keys mismatch (-want +got):\n%s", diff)
	}

	cfg.LenientOverrides = true
	if _, err := New(Options{}).Build(post, cfg); err != nil {
		t.Fatalf("lenient overrides should ignore unknown keys: %v", err)
	}
}

func TestBuild_UnknownDeclaredValidator(t *testing.T) {
	broken := &schema.Model{Name: "Broken", Fields: []*schema.Field{
		{Name: "code", Type: schema.TypeChar, Validators: []string{"palindrome"}},
	}}
	if _, err := schema.NewCatalog(broken); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	_, err := New(Options{}).Build(broken, Config{})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuild_ProxyFieldsFlattenOneToOne(t *testing.T) {
	catalog := blogCatalog(t)
	account := model(t, catalog, "Account")

	m, err := New(Options{}).Build(account, Config{Proxies: []Proxy{{Relation: "profile", Fields: []string{"website", "handle"}}}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := []string{"id", "email", "website", "handle", "profile_id"}
	if diff := cmp.Diff(want, m.FieldNames()); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
	website, _ := m.Field("website")
	if website.Group != GroupProxy || website.Rule.Source != "profile.website" || !website.Rule.AllowNull {
		t.Fatalf("unexpected proxy field %+v", website.Rule)
	}
	handle, _ := m.Field("handle")
	if handle.Rule.Unique == nil || handle.Rule.Unique.Model.Name != "Profile" {
		t.Fatalf("proxy uniqueness should bind to the remote model, got %+v", handle.Rule.Unique)
	}
	profile, _ := m.Field("profile_id")
	if profile.Rule.Unique == nil {
		t.Fatalf("one-to-one relation should carry a uniqueness check")
	}

	_, err = New(Options{}).Build(model(t, catalog, "Post"), Config{Proxies: []Proxy{{Relation: "author", Fields: []string{"bio"}}}})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("foreign key proxy should be rejected, got %v", err)
	}
}

func TestBuild_RelationFollowsPrimaryKeyChain(t *testing.T) {
	place := &schema.Model{Name: "Place", Fields: []*schema.Field{
		{Name: "name", Type: schema.TypeChar},
	}}
	restaurant := &schema.Model{Name: "Restaurant", Fields: []*schema.Field{
		{Name: "place", Type: schema.TypeOneToOne, Related: "Place", PrimaryKey: true},
	}}
	token := &schema.Model{Name: "Token", Fields: []*schema.Field{
		{Name: "key", Type: schema.TypeUUID, PrimaryKey: true},
	}}
	review := &schema.Model{Name: "Review", Fields: []*schema.Field{
		{Name: "restaurant", Type: schema.TypeForeignKey, Related: "Restaurant"},
		{Name: "token", Type: schema.TypeForeignKey, Related: "Token"},
	}}
	if _, err := schema.NewCatalog(place, restaurant, token, review); err != nil {
		t.Fatalf("catalog: %v", err)
	}

	m, err := New(Options{}).Build(review, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	restaurantField, _ := m.Field("restaurant_id")
	if restaurantField.Rule.Kind != KindInteger {
		t.Fatalf("expected integer via one-to-one key chain, got %s", restaurantField.Rule.Kind)
	}
	tokenField, _ := m.Field("token_id")
	if tokenField.Rule.Kind != KindUUID {
		t.Fatalf("expected uuid key, got %s", tokenField.Rule.Kind)
	}
}

func TestBuild_RejectsCyclicKeyChain(t *testing.T) {
	a := &schema.Model{Name: "A"}
	b := &schema.Model{Name: "B"}
	a.Fields = []*schema.Field{{Name: "b", Type: schema.TypeOneToOne, PrimaryKey: true, RelatedModel: b}}
	b.Fields = []*schema.Field{{Name: "a", Type: schema.TypeOneToOne, PrimaryKey: true, RelatedModel: a}}
	holder := &schema.Model{Name: "Holder", Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeAuto, PrimaryKey: true},
		{Name: "a", Type: schema.TypeForeignKey, RelatedModel: a},
	}}
	for _, m := range []*schema.Model{a, b, holder} {
		if err := m.Bind(); err != nil {
			t.Fatalf("bind: %v", err)
		}
	}
	if _, err := New(Options{}).Build(holder, Config{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected cyclic key chain to fail, got %v", err)
	}
}

func TestDecodeEncode_RoundTrip(t *testing.T) {
	catalog := blogCatalog(t)
	store := newFakeStore()
	store.put(model(t, catalog, "Author"), Record{"id": 7, "name": "Ada"})

	m, err := New(Options{Store: store}).Build(model(t, catalog, "Post"), Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	input := map[string]any{
		"title":     "  Hello  ",
		"body":      nil,
		"rating":    "4",
		"published": "2024-03-01T10:30:00Z",
		"author_id": float64(7),
		"editor_id": nil,
	}
	attrs, err := m.Decode(context.Background(), input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	encoded := m.Encode(attrs)
	want := Record{
		"id":        nil,
		"title":     "Hello",
		"body":      nil,
		"rating":    int64(4),
		"published": "2024-03-01T10:30:00Z",
		"author_id": int64(7),
		"editor_id": nil,
	}
	if diff := cmp.Diff(want, encoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := m.Decode(context.Background(), encoded)
	if err != nil {
		t.Fatalf("second decode: %v", err)
	}
	if diff := cmp.Diff(encoded, m.Encode(again)); diff != "" {
		t.Fatalf("second round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_ProxyValuesNestUnderRelation(t *testing.T) {
	catalog := blogCatalog(t)
	store := newFakeStore()
	store.put(model(t, catalog, "Profile"), Record{"id": 3, "website": nil, "handle": "ada"})

	m, err := New(Options{Store: store}).Build(model(t, catalog, "Account"), Config{
		Proxies: []Proxy{{Relation: "profile", Fields: []string{"handle"}}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	attrs, err := m.Decode(context.Background(), map[string]any{
		"email":      "ada@example.com",
		"handle":     "ada-l",
		"profile_id": 3,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Record{"email": "ada@example.com", "profile": Record{"handle": "ada-l"}, "profile_id": int64(3)}
	if diff := cmp.Diff(want, attrs); diff != "" {
		t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
	}

	encoded := m.Encode(attrs)
	if encoded["handle"] != "ada-l" {
		t.Fatalf("expected proxy to encode through source path, got %v", encoded["handle"])
	}

	_, err = m.Decode(context.Background(), map[string]any{
		"email":      "bob@example.com",
		"handle":     "ada",
		"profile_id": 3,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields["handle"]) != 1 {
		t.Fatalf("expected uniqueness failure on handle, got %v", err)
	}

	_, err = m.Decode(context.Background(), map[string]any{
		"email":      "ada@example.com",
		"handle":     "ada",
		"profile_id": 3,
	}, WithInstance(Record{"id": 1, "profile_id": 3}))
	if err != nil {
		t.Fatalf("updating the owning row should not trip uniqueness: %v", err)
	}
}

func TestDecode_AggregatesFieldErrors(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	m, err := New(Options{}).Build(post, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = m.Decode(context.Background(), map[string]any{
		"title":  "this title is much too long to fit",
		"rating": 9,
		"body":   nil,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string][]string{
		"title":     {"Ensure this field has no more than 20 characters."},
		"rating":    {"Ensure this value is less than or equal to 5."},
		"author_id": {"This field is required."},
	}
	if diff := cmp.Diff(want, verr.Map()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_MissingRelationTarget(t *testing.T) {
	catalog := blogCatalog(t)
	m, err := New(Options{Store: newFakeStore()}).Build(model(t, catalog, "Post"), Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err = m.Decode(context.Background(), map[string]any{"title": "x", "author_id": 99})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if diff := cmp.Diff([]string{`Invalid pk "99" - object does not exist.`}, verr.Fields["author_id"]); diff != "" {
		t.Fatalf("lookup failure mismatch (-want +got):\n%s", diff)
	}
}

func TestValidator_UnknownFieldFailsAtBuild(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	v := NewValidator(func(context.Context, map[string]any) error { return nil }, "title", "x")

	_, err := New(Options{}).Build(post, Config{Validator: v})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if diff := cmp.Diff([]string{"x"}, cfgErr.Fields); diff != "" {
		t.Fatalf("offending fields mismatch (-want +got):\n%s", diff)
	}
}

func TestValidator_RelationRequiresStore(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	v := NewValidator(func(context.Context, map[string]any) error { return nil }, "author")

	if _, err := New(Options{}).Build(post, Config{Validator: v}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error without store, got %v", err)
	}
	if _, err := New(Options{Store: newFakeStore()}).Build(post, Config{Validator: v}); err != nil {
		t.Fatalf("build with store: %v", err)
	}
}

func TestValidator_ReceivesResolvedRelations(t *testing.T) {
	catalog := blogCatalog(t)
	store := newFakeStore()
	store.put(model(t, catalog, "Author"), Record{"id": 7, "name": "Ada"})

	var got map[string]any
	v := NewValidator(func(_ context.Context, args map[string]any) error {
		got = args
		return nil
	}, "title", "author", "author_id")

	m, err := New(Options{Store: store}).Build(model(t, catalog, "Post"), Config{Validator: v})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := m.Decode(context.Background(), map[string]any{"title": "Hi", "author_id": 7}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"title":     "Hi",
		"author":    Record{"id": 7, "name": "Ada"},
		"author_id": int64(7),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("validator args mismatch (-want +got):\n%s", diff)
	}
}

func TestValidator_PartialUpdateBackfillsFromInstance(t *testing.T) {
	scores := &schema.Model{Name: "Score", Fields: []*schema.Field{
		{Name: "a", Type: schema.TypeInteger},
		{Name: "b", Type: schema.TypeInteger},
	}}
	if _, err := schema.NewCatalog(scores); err != nil {
		t.Fatalf("catalog: %v", err)
	}

	var got map[string]any
	v := NewValidator(func(_ context.Context, args map[string]any) error {
		got = args
		return nil
	}, "a", "b")

	m, err := New(Options{}).Build(scores, Config{Validator: v})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	instance := Record{"id": 1, "a": 5, "b": 1}
	attrs, err := m.Decode(context.Background(), map[string]any{"b": 2}, WithInstance(instance), Partial())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": 5, "b": int64(2)}, got); diff != "" {
		t.Fatalf("validator args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Record{"b": int64(2)}, attrs); diff != "" {
		t.Fatalf("backfill must not leak into attrs (-want +got):\n%s", diff)
	}
}

func TestValidator_ErrorPropagatesUnchanged(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	rejection := NewNonFieldError("title must differ from body")
	v := NewValidator(func(context.Context, map[string]any) error { return rejection }, "title", "body")

	m, err := New(Options{}).Build(post, Config{Validator: v})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err = m.Decode(context.Background(), map[string]any{"title": "x", "author_id": 1})
	if err != rejection {
		t.Fatalf("expected validator error to propagate unchanged, got %v", err)
	}
	if diff := cmp.Diff(map[string][]string{NonFieldErrorsKey: {"title must differ from body"}}, rejection.Map()); diff != "" {
		t.Fatalf("non-field bucket mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_NestedMappingEmbedsRelatedShape(t *testing.T) {
	catalog := blogCatalog(t)
	base, err := New(Options{}).Build(model(t, catalog, "Post"), Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	tree, err := ParsePrefetch(map[string]any{"author": []any{"bio"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	expanded, err := base.Expand(tree)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	want := append(base.FieldNames(), "author")
	if diff := cmp.Diff(want, expanded.FieldNames()); diff != "" {
		t.Fatalf("expanded fields mismatch (-want +got):\n%s", diff)
	}
	author, _ := expanded.Field("author")
	if author.Rule.Kind != KindNested || author.Rule.Nested == nil {
		t.Fatalf("expected nested rule, got %+v", author.Rule)
	}
	if _, ok := author.Rule.Nested.Field("bio"); !ok {
		t.Fatalf("nested shape should declare bio, got %v", author.Rule.Nested.FieldNames())
	}
	if len(base.FieldNames()) != 7 {
		t.Fatalf("base marshaller must stay unchanged, got %v", base.FieldNames())
	}

	encoded := expanded.Encode(Record{"id": 1, "title": "t", "author_id": 7, "author": Record{"id": 7, "name": "Ada", "bio": "x"}})
	nested, ok := encoded["author"].(Record)
	if !ok || nested["bio"] != "x" {
		t.Fatalf("expected nested encode, got %#v", encoded["author"])
	}
}

func TestExpand_LastWriteWins(t *testing.T) {
	catalog := blogCatalog(t)
	base, err := New(Options{}).Build(model(t, catalog, "Post"), Config{Computed: []string{"word_count"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	expanded, err := base.Expand(
		PrefetchOne("headline"),
		PrefetchMap(Branch("headline", PrefetchList("name"))),
	)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("mapping over a non-relation should fail, got %v (%v)", err, expanded)
	}

	specs, err := ParsePrefetchSpecs([]any{"author", map[string]any{"author": []any{"name"}}, "word_count"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	expanded, err = base.Expand(specs...)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	author, _ := expanded.Field("author")
	if author.Rule.Nested == nil || author.Rule.Nested.Name() != "AuthorPrefetch" {
		t.Fatalf("expected mapping-based shape to win, got %+v", author.Rule)
	}
	words, _ := expanded.Field("word_count")
	if words.Group != GroupComputed || !words.Rule.ReadOnly || words.Rule.Kind != KindJSON {
		t.Fatalf("expected computed field, got %+v", words)
	}
	if diff := cmp.Diff([]string{"author", "word_count"}, expanded.FieldNames()[7:]); diff != "" {
		t.Fatalf("prefetch order mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_OpaqueNameAndStringShape(t *testing.T) {
	base, err := New(Options{}).Build(model(t, blogCatalog(t), "Post"), Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	expanded, err := base.Expand(PrefetchList("author", "summary"))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	author, _ := expanded.Field("author")
	if author.Rule.Nested.Name() != "Author" {
		t.Fatalf("string entry should embed the base related shape, got %s", author.Rule.Nested.Name())
	}
	summary, _ := expanded.Field("summary")
	if summary.Rule.Kind != KindJSON || !summary.Rule.ReadOnly {
		t.Fatalf("unknown name should be opaque, got %+v", summary.Rule)
	}
	if expanded.Validator() != nil {
		t.Fatalf("expanded shapes do not carry the validator")
	}
}

func TestParsePrefetchYAMLKeepsOrder(t *testing.T) {
	var node yaml.Node
	src := "- editor\n- author: [name]\n  editor:\n    - bio\n"
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	trees, err := ParsePrefetchYAML(&node)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []PrefetchTree{
		PrefetchOne("editor"),
		PrefetchMap(
			Branch("author", PrefetchList("name")),
			Branch("editor", PrefetchList("bio")),
		),
	}
	if diff := cmp.Diff(want, trees); diff != "" {
		t.Fatalf("trees mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeJSON_PreservesOrder(t *testing.T) {
	author := model(t, blogCatalog(t), "Author")
	m, err := New(Options{}).Build(author, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := m.EncodeJSON(Record{"bio": "b", "name": "Ada", "id": 7})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := string(data), `{"id":7,"name":"Ada","bio":"b"}`; got != want {
		t.Fatalf("json mismatch: got %s want %s", got, want)
	}
}

func TestCache_ReusesByValueKey(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	cache := NewCache(New(Options{}))

	first, err := cache.Get(post, Config{Computed: []string{"x"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := cache.Get(post, Config{Computed: []string{"x"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical configuration to hit the cache")
	}
	if _, err := cache.Get(post, Config{}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
}

func scalarModel(t *testing.T) *schema.Model {
	t.Helper()
	flag := &schema.Model{Name: "Flag", Fields: []*schema.Field{
		{Name: "count", Type: schema.TypeInteger},
		{Name: "active", Type: schema.TypeBoolean},
	}}
	if _, err := schema.NewCatalog(flag); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return flag
}

func TestDecode_IntegerCoercion(t *testing.T) {
	m, err := New(Options{}).Build(scalarModel(t), Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	accepted := []struct {
		in   any
		want int64
	}{
		{"010", 10},
		{" 42 ", 42},
		{"-7", -7},
		{float64(3), 3},
		{int(5), 5},
		{uint8(9), 9},
	}
	for _, tc := range accepted {
		attrs, err := m.Decode(context.Background(), map[string]any{"count": tc.in}, Partial())
		if err != nil {
			t.Fatalf("decode %#v: %v", tc.in, err)
		}
		if attrs["count"] != tc.want {
			t.Fatalf("decode %#v: got %#v want %d", tc.in, attrs["count"], tc.want)
		}
	}

	for _, in := range []any{"0x1A", "1e3", "3.5", "", "twelve", true, false, float64(2.5), []any{1}} {
		_, err := m.Decode(context.Background(), map[string]any{"count": in}, Partial())
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("decode %#v: expected ValidationError, got %v", in, err)
		}
		if diff := cmp.Diff([]string{"A valid integer is required."}, verr.Fields["count"]); diff != "" {
			t.Fatalf("decode %#v mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestDecode_BooleanCoercion(t *testing.T) {
	m, err := New(Options{}).Build(scalarModel(t), Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	accepted := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{" FALSE ", false},
		{"1", true},
		{"0", false},
		{float64(1), true},
		{0, false},
	}
	for _, tc := range accepted {
		attrs, err := m.Decode(context.Background(), map[string]any{"active": tc.in}, Partial())
		if err != nil {
			t.Fatalf("decode %#v: %v", tc.in, err)
		}
		if attrs["active"] != tc.want {
			t.Fatalf("decode %#v: got %#v want %v", tc.in, attrs["active"], tc.want)
		}
	}

	for _, in := range []any{2, 5, -1, float64(0.5), "2", "maybe", ""} {
		_, err := m.Decode(context.Background(), map[string]any{"active": in}, Partial())
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("decode %#v: expected ValidationError, got %v", in, err)
		}
		if diff := cmp.Diff([]string{"Must be a valid boolean."}, verr.Fields["active"]); diff != "" {
			t.Fatalf("decode %#v mismatch (-want +got):\n%s", in, diff)
		}
	}
}

type catalogTranslator map[string]string

func (c catalogTranslator) Translate(locale, key string, params ...any) (string, error) {
	format, ok := c[locale+"|"+key]
	if !ok {
		return "", fmt.Errorf("no %s translation for %s", locale, key)
	}
	if len(params) == 0 {
		return format, nil
	}
	return fmt.Sprintf(format, params...), nil
}

func TestDecode_LocalizesMessages(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	translator := catalogTranslator{
		"es|" + MsgRequired:       "Este campo es obligatorio.",
		"es|" + MsgInvalidInteger: "Se requiere un entero válido.",
		"fr|" + MsgRequired:       "Ce champ est obligatoire.",
	}
	var missed []string
	m, err := New(Options{
		Translator: translator,
		Locale:     "es",
		OnMissing: func(locale, key, fallback string, err error) string {
			missed = append(missed, locale+"|"+key)
			return fallback
		},
	}).Build(post, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = m.Decode(context.Background(), map[string]any{
		"title":  "this title is much too long to fit",
		"rating": "many",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string][]string{
		"title":     {"Ensure this field has no more than 20 characters."},
		"rating":    {"Se requiere un entero válido."},
		"author_id": {"Este campo es obligatorio."},
	}
	if diff := cmp.Diff(want, verr.Map()); diff != "" {
		t.Fatalf("localized errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"es|" + MsgMaxLength}, missed); diff != "" {
		t.Fatalf("missing translations mismatch (-want +got):\n%s", diff)
	}

	_, err = m.Decode(context.Background(), map[string]any{"title": "ok"}, WithLocale("fr"))
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if diff := cmp.Diff([]string{"Ce champ est obligatoire."}, verr.Fields["author_id"]); diff != "" {
		t.Fatalf("locale override mismatch (-want +got):\n%s", diff)
	}
}

func TestMessage_DefaultText(t *testing.T) {
	cases := map[string]*Message{
		"This field is required.":                          newMessage(MsgRequired),
		`"purple" is not a valid choice.`:                  newMessage(MsgInvalidChoice, "purple"),
		"Ensure this value is less than or equal to 5.":    newMessage(MsgMaxValue, "5"),
		"Post with this slug already exists.":              newMessage(MsgUnique, "Post", "slug"),
		"marshal.custom":                                   newMessage("marshal.custom"),
		"Ensure this field has no more than 3 characters.": newMessage(MsgMaxLength, 3),
	}
	for want, msg := range cases {
		if got := msg.Error(); got != want {
			t.Fatalf("message %s: got %q want %q", msg.Key, got, want)
		}
	}
}

func TestDecodeEncode_GoldenRecord(t *testing.T) {
	manifest := testsupport.LoadManifest(t, filepath.Join("..", "..", "pkg", "testsupport", "testdata", "blog.yaml"))
	post, ok := manifest.Catalog.Get("Post")
	if !ok {
		t.Fatalf("Post missing from manifest")
	}
	m, err := New(Options{}).Build(post, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	input := testsupport.MustLoadRecord(t, filepath.Join("..", "..", "pkg", "testsupport", "testdata", "post.golden.json"))
	attrs, err := m.Decode(testsupport.Context(), input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, err := m.EncodeJSON(attrs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"id":null,"title":"Engines","author_id":1`) {
		t.Fatalf("encoded fields out of order: %s", data)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal encoded: %v", err)
	}
	path := filepath.Join("testdata", "post.encoded.golden.json")
	testsupport.WriteGolden(t, path, got)
	if diff := testsupport.CompareGolden(testsupport.MustLoadRecord(t, path), got); diff != "" {
		t.Fatalf("golden mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshaller_ConcurrentDecodeEncode(t *testing.T) {
	catalog := blogCatalog(t)
	store := newFakeStore()
	store.put(model(t, catalog, "Author"), Record{"id": 7, "name": "Ada"})
	m, err := New(Options{Store: store}).Build(model(t, catalog, "Post"), Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := fmt.Sprintf("post %d", i)
			attrs, err := m.Decode(context.Background(), map[string]any{
				"title":     title,
				"rating":    i % 6,
				"author_id": 7,
			})
			if err != nil {
				errs <- err
				return
			}
			encoded := m.Encode(attrs)
			if encoded["title"] != title || encoded["rating"] != int64(i%6) {
				errs <- fmt.Errorf("worker %d encoded %v", i, encoded)
				return
			}
			if _, err := m.EncodeJSON(attrs); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent decode/encode: %v", err)
	}
}

func TestCache_ConcurrentGetSharesMarshaller(t *testing.T) {
	post := model(t, blogCatalog(t), "Post")
	cache := NewCache(New(Options{}))

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*Marshaller, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(post, Config{Computed: []string{"x"}})
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("get %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("worker %d received a different marshaller", i)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}
}
