package e2e

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestScenarios_ReferenceCorpus(t *testing.T) {
	ids := make(map[string]bool, len(FAQRows))
	for i := range FAQRows {
		ids["faq_"+strconv.Itoa(i)] = true
	}
	for _, s := range Scenarios {
		if strings.TrimSpace(s.Query) == "" {
			t.Errorf("%s: empty query", s.Name)
		}
		if s.Expect == ExpectAnswer && len(s.Cited) == 0 {
			t.Errorf("%s: answer scenario without expected citations", s.Name)
		}
		for _, id := range s.Cited {
			if !ids[id] {
				t.Errorf("%s: cites %s which is not in the corpus", s.Name, id)
			}
		}
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.csv")
	if err := WriteCSV(path, FAQRows); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != len(FAQRows)+1 {
		t.Fatalf("got %d lines, want %d", len(lines), len(FAQRows)+1)
	}
	if lines[0] != "question,answer" {
		t.Errorf("header = %q", lines[0])
	}
	// commas inside answers are quoted
	if !strings.Contains(string(data), `"Medicare Part B covers outpatient care, doctor visits and preventive services."`) {
		t.Error("answer with commas not quoted")
	}
}
