package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_RejectsEmpty(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	_, err := New([]Chunk{
		{ID: "a", Content: "x"},
		{ID: "a", Content: "y"},
	})
	if err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestNew_RejectsEmptyID(t *testing.T) {
	_, err := New([]Chunk{{ID: "", Content: "x"}})
	if err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	data := `[
		{"id": "c1", "content": "Стояк до первого запорного устройства — общее имущество.", "source": "жк_рф.txt", "tags": ["норматив", "авария"]},
		{"id": "c2", "content": "Суд взыскал ущерб с управляющей организации.", "source": "практика.txt", "tags": ["практика"]}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}

	c, ok := store.Get("c1")
	if !ok {
		t.Fatal("Get(c1) not found")
	}
	if !c.HasTag("авария") {
		t.Error("c1 should carry tag авария")
	}
	if c.HasTag("практика") {
		t.Error("c1 should not carry tag практика")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestByTag_PreservesCorpusOrder(t *testing.T) {
	store, err := New([]Chunk{
		{ID: "a", Content: "1", Tags: []string{"тариф"}},
		{ID: "b", Content: "2", Tags: []string{"авария"}},
		{ID: "c", Content: "3", Tags: []string{"тариф", "авария"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := store.ByTag("тариф")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("ByTag(тариф) = %+v, want [a c]", got)
	}
	if len(store.ByTag("капремонт")) != 0 {
		t.Error("ByTag for absent tag should be empty")
	}
}
