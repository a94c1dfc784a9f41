// Package e2e provides end-to-end tests that drive the full question-answering pipeline over
// small insurance corpora.
package e2e

import (
	"encoding/csv"
	"os"

	"github.com/xuri/excelize/v2"
)

// FAQRow is one question/answer pair of the FAQ table.
type FAQRow struct {
	Question string
	Answer   string
}

// Expectation is how a scenario must end.
type Expectation int

const (
	// ExpectAnswer requires an answer citing Cited.
	ExpectAnswer Expectation = iota
	// ExpectOutOfScope requires an out_of_scope refusal made before retrieval.
	ExpectOutOfScope
	// ExpectInsufficient requires an insufficient_grounding refusal.
	ExpectInsufficient
)

// Scenario is a question and the outcome the pipeline must produce for it.
type Scenario struct {
	Name     string
	Query    string
	Expect   Expectation
	Cited    []string
	Contains string
}

// FAQRows is the insurance FAQ corpus. Row i becomes document faq_<i>.
var FAQRows = []FAQRow{
	{"What is a deductible?", "A deductible is the amount you pay before your insurance plan pays."},
	{"Is a root canal covered by my dental plan?", "Root canal treatment is covered at 80% after the dental deductible. Crowns and bridges fall under major services."},
	{"What does Medicare Part B cover?", "Medicare Part B covers outpatient care, doctor visits and preventive services."},
	{"What is coinsurance?", "Coinsurance is your share of the costs of a covered health care service after you pay your deductible."},
	{"How do I file a claim?", "Submit a claim form with itemized receipts within 90 days of the service."},
}

// Scenarios are the end-to-end checks run against FAQRows.
var Scenarios = []Scenario{
	{Name: "dental root canal", Query: "Is a root canal covered by my dental plan?", Expect: ExpectAnswer, Cited: []string{"faq_1"}, Contains: "80%"},
	{Name: "dental plan root canals", Query: "What does my dental plan cover for root canals?", Expect: ExpectAnswer, Cited: []string{"faq_1"}, Contains: "80%"},
	{Name: "coinsurance", Query: "What is coinsurance?", Expect: ExpectAnswer, Cited: []string{"faq_3"}},
	{Name: "medication dose", Query: "How much ibuprofen should I take for a toothache?", Expect: ExpectOutOfScope},
	{Name: "ibuprofen dose", Query: "What dose of ibuprofen should I take?", Expect: ExpectOutOfScope},
	{Name: "highest median claim", Query: "Which age group had the highest median claim cost?", Expect: ExpectOutOfScope},
	{Name: "age group analytics", Query: "What is the median claim cost by age group?", Expect: ExpectOutOfScope},
	{Name: "general knowledge", Query: "What is the capital of France?", Expect: ExpectOutOfScope},
}

// PolicyDocuments are the files of the documents-directory corpus, keyed by file name.
// Each becomes document doc_<stem>.
var PolicyDocuments = map[string]string{
	"dental_policy.md":  "# Dental Policy\n\nRoot canal treatment is covered at 80% after the dental deductible. Cleanings are covered twice a year.",
	"auto_policy.docx":  "Collision repairs to your vehicle are paid after a 500 dollar deductible.",
	"home_policy.html":  "Water damage from burst pipes is covered up to the dwelling limit.",
	"travel_policy.txt": "Trip cancellation is reimbursed when a traveler is hospitalized before departure.",
}

// WriteCSV writes rows as a question,answer CSV table to path.
func WriteCSV(path string, rows []FAQRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"question", "answer"})
	for _, r := range rows {
		_ = w.Write([]string{r.Question, r.Answer})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteXLSX writes rows to the first sheet of a workbook at path, header first.
func WriteXLSX(path string, rows []FAQRow) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Question", "Answer"}); err != nil {
		return err
	}
	for i, r := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellRef, &[]interface{}{r.Question, r.Answer}); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
