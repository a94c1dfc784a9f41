package models

// ScoredChunk is a retrieved chunk with its similarity to the query and provenance.
type ScoredChunk struct {
	Chunk         Chunk   `json:"chunk"`
	DocumentTitle string  `json:"document_title"`
	SourcePath    string  `json:"source_path"`
	Similarity    float64 `json:"similarity"`
}

// RetrievalResult is ordered by descending similarity with no duplicate chunk ids.
// TopSimilarity is the best raw score before the minimum-similarity cut; Considered is the
// number of index hits inspected. Both feed the guardrail's semantic check.
type RetrievalResult struct {
	Query         string        `json:"query"`
	Chunks        []ScoredChunk `json:"chunks"`
	TopSimilarity float64       `json:"top_similarity"`
	Considered    int           `json:"considered"`
	Fingerprint   string        `json:"fingerprint"`
}

// Empty reports whether no chunk survived retrieval.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

// DocumentIDs returns the distinct parent document ids in rank order.
func (r *RetrievalResult) DocumentIDs() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool, len(r.Chunks))
	ids := make([]string, 0, len(r.Chunks))
	for _, sc := range r.Chunks {
		if seen[sc.Chunk.DocumentID] {
			continue
		}
		seen[sc.Chunk.DocumentID] = true
		ids = append(ids, sc.Chunk.DocumentID)
	}
	return ids
}

// HasDocument reports whether any retrieved chunk belongs to docID.
func (r *RetrievalResult) HasDocument(docID string) bool {
	if r == nil {
		return false
	}
	for _, sc := range r.Chunks {
		if sc.Chunk.DocumentID == docID {
			return true
		}
	}
	return false
}

// ChunksFor returns the retrieved chunks of docID in rank order.
func (r *RetrievalResult) ChunksFor(docID string) []ScoredChunk {
	if r == nil {
		return nil
	}
	var out []ScoredChunk
	for _, sc := range r.Chunks {
		if sc.Chunk.DocumentID == docID {
			out = append(out, sc)
		}
	}
	return out
}
