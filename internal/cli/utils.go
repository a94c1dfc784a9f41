// Package cli provides CLI output for kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

// WriteAnswer writes a finished turn to w in the given format.
func WriteAnswer(w io.Writer, turn *models.Turn, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, turn)
	}
	ans := turn.Answer
	fmt.Fprintf(w, "\n%s\n\n", ans.Text)
	if ans.Refusal {
		fmt.Fprintf(w, "Refused: %s\n", ans.Reason)
	}
	if turn.Verdict.Reason != "" {
		fmt.Fprintf(w, "Scope: %s\n", turn.Verdict.Reason)
	}
	if len(ans.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, c := range ans.Citations {
			fmt.Fprintf(w, "  [%s] %s", c.DocumentID, c.Title)
			if c.SourcePath != "" {
				fmt.Fprintf(w, " (%s)", c.SourcePath)
			}
			fmt.Fprintln(w)
		}
	}
	if turn.Retrieval != nil && len(turn.Retrieval.Chunks) > 0 {
		fmt.Fprintln(w, "\nRetrieved:")
		for i, sc := range turn.Retrieval.Chunks {
			fmt.Fprintf(w, "  %d. %s %.3f  %s\n", i+1, sc.Chunk.DocumentID, sc.Similarity, utils.TruncateWords(sc.Chunk.Content, 12))
		}
	}
	return nil
}

// WriteHarnessReport writes a harness report to w in the given format.
func WriteHarnessReport(w io.Writer, report *models.HarnessReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "\nHarness run %s: %d passed, %d failed (%s)\n\n",
		report.RunID, report.Passed, report.Failed, report.FinishedAt.Sub(report.StartedAt).Round(1e6))
	for _, r := range report.Results {
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "[%s] %s: %s\n", mark, r.Case.Category, r.Case.Name)
		fmt.Fprintf(w, "  expected: %s\n", r.Case.Expected)
		fmt.Fprintf(w, "  observed: %s\n", r.Observed)
		if !r.Passed {
			for _, obs := range r.Evidence {
				fmt.Fprintf(w, "    %q -> %s\n", obs.Query, utils.Truncate(obs.Answer, 120))
			}
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteHarnessRuns writes stored run summaries to w in the given format.
func WriteHarnessRuns(w io.Writer, runs []models.HarnessRunSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"runs": runs})
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No harness runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  passed=%d failed=%d\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Passed, r.Failed)
	}
	return nil
}

// WriteStatus writes the engine status to w in the given format.
func WriteStatus(w io.Writer, st *assistant.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Documents:   %d\n", st.Documents)
	fmt.Fprintf(w, "Chunks:      %d\n", st.Chunks)
	fmt.Fprintf(w, "Index size:  %d\n", st.IndexSize)
	if st.Fingerprint != "" {
		fmt.Fprintf(w, "Fingerprint: %s\n", utils.Truncate(st.Fingerprint, 16))
		fmt.Fprintf(w, "Built at:    %s\n", st.BuiltAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Embedder:    %s (%d dims)\n", st.Embedder, st.Dimensions)
	fmt.Fprintf(w, "Generator:   %s\n", st.Generator)
	fmt.Fprintf(w, "Storage:     %s\n", st.StorageDriver)
	fmt.Fprintf(w, "Chunking:    %d words, %d overlap, top %d\n", st.ChunkSize, st.ChunkOverlap, st.TopK)
	fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(st.DiskUsageBytes))
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatBytes renders n bytes with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
