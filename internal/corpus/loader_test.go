package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoader_CSV(t *testing.T) {
	dir := t.TempDir()
	faq := filepath.Join(dir, "insurance_faq.csv")
	writeFile(t, faq, "\ufeffQuestion,Answer\n"+
		"What is a deductible?,The amount you pay   before the plan pays.\n"+
		",\n"+
		"\"Is a root canal covered?\",\"Yes, at 80% after the deductible.\"\n")

	docs, err := NewLoader(config.CorpusConfig{FAQPath: faq}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "faq_0", docs[0].ID)
	assert.Equal(t, "Q: What is a deductible?\nA: The amount you pay before the plan pays.", docs[0].Content)
	assert.Equal(t, "What is a deductible?", docs[0].Title)
	assert.Equal(t, "insurance_faq.csv", docs[0].SourcePath)
	// blank row 1 is skipped without renumbering
	assert.Equal(t, "faq_2", docs[1].ID)
	assert.Equal(t, "2", docs[1].Metadata["row"])
}

func TestLoader_CSVColumnVariants(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"exact", "question,answer", false},
		{"case and spaces", " QUESTION , Answer ", false},
		{"contains", "faq_question,official_answer", false},
		{"exact wins over contains", "question_id,question,answer", false},
		{"missing answer", "question,reply", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faq := filepath.Join(t.TempDir(), "faq.csv")
			var row string
			switch tt.name {
			case "exact wins over contains":
				row = "q1,What is coinsurance?,Your share of costs."
			default:
				row = "What is coinsurance?,Your share of costs."
			}
			writeFile(t, faq, tt.header+"\n"+row+"\n")
			docs, err := NewLoader(config.CorpusConfig{FAQPath: faq}).Load(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrSourceInvalid)
				return
			}
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "Q: What is coinsurance?\nA: Your share of costs.", docs[0].Content)
		})
	}
}

func TestLoader_XLSX(t *testing.T) {
	faq := filepath.Join(t.TempDir(), "faq.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "question")
	f.SetCellValue("Sheet1", "B1", "answer")
	f.SetCellValue("Sheet1", "A2", "Does Medicare Part B cover outpatient care?")
	f.SetCellValue("Sheet1", "B2", "Yes, Part B covers outpatient care.")
	require.NoError(t, f.SaveAs(faq))
	require.NoError(t, f.Close())

	docs, err := NewLoader(config.CorpusConfig{FAQPath: faq}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "faq_0", docs[0].ID)
	assert.Contains(t, docs[0].Content, "A: Yes, Part B covers outpatient care.")
}

func TestLoader_DocsDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dental.md"), "# Dental Coverage\n\nRoot canals are covered at 80%.\n")
	writeFile(t, filepath.Join(dir, "claims.txt"), "File claims within 90 days.")
	writeFile(t, filepath.Join(dir, "notes.csv"), "ignored")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0755))

	cfg := config.CorpusConfig{FAQPath: filepath.Join(dir, "missing.csv"), DocsDir: dir}
	docs, err := NewLoader(cfg).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc_claims", docs[0].ID)
	assert.Equal(t, "claims", docs[0].Title)
	assert.Equal(t, "doc_dental", docs[1].ID)
	assert.Equal(t, "Dental Coverage", docs[1].Title)
	assert.Equal(t, "# Dental Coverage\nRoot canals are covered at 80%.", docs[1].Content)
	assert.Equal(t, "md", docs[1].Metadata["format"])
}

func TestLoader_DocsDirExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "b.md"), "beta")
	docs, err := NewLoader(config.CorpusConfig{DocsDir: dir, Extensions: []string{".MD"}}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc_b", docs[0].ID)
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	_, err := NewLoader(config.CorpusConfig{
		FAQPath: filepath.Join(dir, "nope.csv"),
		DocsDir: filepath.Join(dir, "nope"),
	}).Load(ctx)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0755))
	writeFile(t, filepath.Join(empty, "blank.txt"), "  \n\t ")
	_, err = NewLoader(config.CorpusConfig{DocsDir: empty}).Load(ctx)
	assert.ErrorIs(t, err, models.ErrSourceInvalid)

	dup := filepath.Join(dir, "dup")
	require.NoError(t, os.Mkdir(dup, 0755))
	writeFile(t, filepath.Join(dup, "plan.txt"), "one")
	writeFile(t, filepath.Join(dup, "plan.md"), "two")
	_, err = NewLoader(config.CorpusConfig{DocsDir: dup}).Load(ctx)
	assert.ErrorIs(t, err, models.ErrSourceInvalid)

	json := filepath.Join(dir, "faq.json")
	writeFile(t, json, "{}")
	_, err = NewLoader(config.CorpusConfig{FAQPath: json}).Load(ctx)
	assert.ErrorIs(t, err, models.ErrSourceInvalid)

	headerless := filepath.Join(dir, "headerless.csv")
	writeFile(t, headerless, "")
	_, err = NewLoader(config.CorpusConfig{FAQPath: headerless}).Load(ctx)
	assert.ErrorIs(t, err, models.ErrSourceInvalid)
}

func TestLoader_EmptyLocations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	docs, err := NewLoader(config.CorpusConfig{DocsDir: dir}).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	faq := filepath.Join(dir, "faq.csv")
	writeFile(t, faq, "question,answer\n")
	docs, err = NewLoader(config.CorpusConfig{FAQPath: faq}).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"Q: x\n\n\nA:\t y ", "Q: x\nA: y"},
		{"\r\nline\r\n", "line"},
		{"", ""},
		{"a\x00b", "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extensionAllowed(tt.ext, tt.allowed), "extensionAllowed(%q)", tt.ext)
	}
}
