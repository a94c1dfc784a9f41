package vector

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestIndex_BuildSearch(t *testing.T) {
	idx, err := Build("fp", "hash-3", 3,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search([]float32{2, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("top result should be a with score 1, got %+v", results[0])
	}
	if results[1].ID != "b" {
		t.Errorf("second result should be b, got %s", results[1].ID)
	}
}

func TestIndex_SearchOrderingAndTies(t *testing.T) {
	idx, err := Build("fp", "e", 2,
		[]string{"z", "m", "a", "q"},
		[][]float32{{1, 0}, {1, 0}, {1, 0}, {0, 1}},
	)
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected all 4 results, got %d", len(results))
	}
	want := []string{"a", "m", "z", "q"}
	for i, r := range results {
		if r.ID != want[i] {
			t.Errorf("result %d = %s, want %s", i, r.ID, want[i])
		}
		if i > 0 && r.Score > results[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}
}

func TestIndex_SearchEdgeCases(t *testing.T) {
	idx, _ := Build("fp", "e", 2, []string{"x"}, [][]float32{{1, 0}})
	if res, err := idx.Search([]float32{1, 0}, 0); err != nil || res != nil {
		t.Errorf("k=0 should return nothing, got %v %v", res, err)
	}
	if _, err := idx.Search([]float32{1, 0, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if res, _ := idx.Search([]float32{0, 0}, 1); len(res) != 1 || res[0].Score != 0 {
		t.Errorf("zero query should score 0, got %+v", res)
	}
	empty, _ := Build("fp", "e", 2, nil, nil)
	if res, err := empty.Search([]float32{1, 0}, 3); err != nil || len(res) != 0 {
		t.Errorf("empty index should return nothing, got %v %v", res, err)
	}
}

func TestIndex_Contains(t *testing.T) {
	idx, err := Build("fp", "e", 2, []string{"faq_0#0", "faq_1#0"}, [][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !idx.Contains("faq_0#0") || !idx.Contains("faq_1#0") {
		t.Error("built ids should be contained")
	}
	if idx.Contains("faq_2#0") {
		t.Error("unknown id reported as contained")
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build("fp", "e", 0, nil, nil); err == nil {
		t.Error("expected error for zero dimensions")
	}
	if _, err := Build("fp", "e", 2, []string{"a"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := Build("fp", "e", 2, []string{"a"}, [][]float32{{1}}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := Build("fp", "e", 1, []string{"a", "a"}, [][]float32{{1}, {1}}); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vectors.bin")
	idx, err := Build("abc123", "hash-4", 4,
		[]string{"faq_0_aaaa", "faq_1_bbbb"},
		[][]float32{{0.1, 0.2, 0.3, 0.4}, {-1, 0, 0.5, 2}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Fingerprint() != "abc123" || loaded.EmbedderID() != "hash-4" || loaded.Dimensions() != 4 || loaded.Size() != 2 {
		t.Errorf("loaded header mismatch: %s %s %d %d", loaded.Fingerprint(), loaded.EmbedderID(), loaded.Dimensions(), loaded.Size())
	}
	if !loaded.Contains("faq_1_bbbb") {
		t.Error("loaded index should contain faq_1_bbbb")
	}
	a, _ := idx.Search([]float32{-1, 0, 0.5, 2}, 1)
	b, _ := loaded.Search([]float32{-1, 0, 0.5, 2}, 1)
	if a[0] != b[0] {
		t.Errorf("search differs after reload: %+v vs %+v", a[0], b[0])
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.bin"))
	if !errors.Is(err, ErrNoIndexFile) {
		t.Errorf("expected ErrNoIndexFile, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	if c := Cosine([]float32{1, 0}, []float32{0, 1}); c != 0 {
		t.Errorf("orthogonal cosine=%f", c)
	}
	if c := Cosine([]float32{1, 1}, []float32{2, 2}); math.Abs(c-1) > 1e-9 {
		t.Errorf("parallel cosine=%f", c)
	}
	if c := Cosine([]float32{1}, []float32{1, 2}); c != 0 {
		t.Errorf("length mismatch cosine=%f", c)
	}
}
