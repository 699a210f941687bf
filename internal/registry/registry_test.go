package registry

import "testing"

func TestRegistry_SearchRanksNameMatchHigher(t *testing.T) {
	r := NewRegistry(nil)
	r.UpsertBackendTools("exa", []ToolDescriptor{
		{Name: "web_search_exa", Description: "Search the web using Exa's neural engine. Returns results."},
	})
	r.UpsertBackendTools("docs", []ToolDescriptor{
		{Name: "codebase_retrieval", Description: "Search internal documentation and code for relevant snippets."},
	})

	results, err := r.Search("web search", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].Name != "web_search_exa" {
		t.Fatalf("expected web_search_exa ranked first, got %+v", results)
	}
}

func TestRegistry_RemoveBackendDropsItsTools(t *testing.T) {
	r := NewRegistry(nil)
	r.UpsertBackendTools("a", []ToolDescriptor{{Name: "one", Description: "first tool"}})
	r.UpsertBackendTools("b", []ToolDescriptor{{Name: "two", Description: "second tool"}})

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	r.RemoveBackend("a")
	if r.Len() != 1 {
		t.Fatalf("Len() after remove = %d, want 1", r.Len())
	}
	if _, ok := r.Get("a.one"); ok {
		t.Error("a.one should no longer be registered")
	}
	if _, ok := r.Get("b.two"); !ok {
		t.Error("b.two should still be registered")
	}
}

func TestRegistry_UpsertReplacesBackendTools(t *testing.T) {
	r := NewRegistry(nil)
	r.UpsertBackendTools("a", []ToolDescriptor{{Name: "old", Description: "old tool"}})
	r.UpsertBackendTools("a", []ToolDescriptor{{Name: "new", Description: "new tool"}})

	if _, ok := r.Get("a.old"); ok {
		t.Error("a.old should have been superseded")
	}
	if _, ok := r.Get("a.new"); !ok {
		t.Error("a.new should be registered")
	}
}

func TestRegistry_ListNamesPagination(t *testing.T) {
	r := NewRegistry(nil)
	r.UpsertBackendTools("a", []ToolDescriptor{
		{Name: "alpha", Description: "a"},
		{Name: "beta", Description: "b"},
		{Name: "gamma", Description: "c"},
	})

	page1, cursor := r.ListNames("", 2)
	if len(page1) != 2 {
		t.Fatalf("page1 len = %d, want 2", len(page1))
	}
	if cursor == "" {
		t.Fatal("expected a non-empty cursor for a partial page")
	}

	page2, cursor2 := r.ListNames(cursor, 2)
	if len(page2) != 1 {
		t.Fatalf("page2 len = %d, want 1", len(page2))
	}
	if cursor2 != "" {
		t.Errorf("expected empty cursor at the end, got %q", cursor2)
	}
}

func TestRegistry_MutationCallback(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	r.OnMutate(func() { calls++ })

	r.UpsertBackendTools("a", []ToolDescriptor{{Name: "one", Description: "x"}})
	r.RemoveBackend("a")

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return []float32{0, 0}, nil
}

func TestRegistry_SemanticFusionSurfacesDisjointMatch(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"fuzzy query":         {1, 0},
		"semantic_only only one match with no shared tokens": {1, 0},
		"keyword_only second tool matching on literal terms":  {0, 1},
	}}
	r := NewRegistry(embedder)
	r.UpsertBackendTools("a", []ToolDescriptor{
		{Name: "semantic_only", Description: "only one match with no shared tokens"},
		{Name: "keyword_only", Description: "second tool matching on literal terms"},
	})

	results, err := r.Search("fuzzy query", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].Name != "semantic_only" {
		t.Fatalf("expected semantic_only ranked first via embedding similarity, got %+v", results)
	}
}
