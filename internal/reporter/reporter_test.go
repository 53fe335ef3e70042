package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"membership-reconciliation-service/internal/importer"
	"membership-reconciliation-service/internal/matcher"
	"membership-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func sampleResult() *importer.ImportResult {
	matchedRow := models.CsvRow{TransactionDate: "2026-01-15", DepositorName: "김철수", Amount: decimal.NewFromInt(50000), Line: 2}
	reviewRow := models.CsvRow{TransactionDate: "2026-01-16", DepositorName: "김철수", Amount: decimal.NewFromInt(50000), Line: 3}
	unmatchedRow := models.CsvRow{TransactionDate: "2026-01-17", DepositorName: "모르는사람", Amount: decimal.NewFromInt(70000), Line: 4}

	invoice := &models.Invoice{ID: 100, MemberID: 1, Year: 2026, Amount: decimal.NewFromInt(50000), Status: models.InvoiceStatusSent}
	member := &models.MemberBasicInfo{ID: 1, Name: "김철수"}

	return &importer.ImportResult{
		Success: true,
		Parsed: &models.ParsedCsvData{
			Rows:        []models.CsvRow{matchedRow, reviewRow, unmatchedRow},
			Errors:      []models.RowError{{Line: 5, Message: "amount is empty"}},
			TotalAmount: decimal.NewFromInt(170000),
			ValidCount:  3,
		},
		Matches: []*matcher.MatchResult{
			{
				Row:            matchedRow,
				Status:         matcher.StatusMatched,
				Confidence:     95,
				MatchedInvoice: invoice,
				MatchedMember:  member,
				Reason:         "exact amount, exact name",
			},
			{
				Row:        reviewRow,
				Status:     matcher.StatusMultipleMatches,
				Confidence: 75,
				Candidates: []matcher.Candidate{
					{Invoice: invoice, Member: member, Confidence: 75, Reason: "exact amount, exact name"},
					{Invoice: invoice, Member: member, Confidence: 70, Reason: "exact amount, similar name"},
				},
				Reason: "multiple candidates within the dominance gap",
			},
			{
				Row:    unmatchedRow,
				Status: matcher.StatusNoMatch,
				Reason: "no open invoice scored above zero",
			},
		},
		Summary: importer.Summary{
			MatchedCount:       1,
			MultipleMatchCount: 1,
			NoMatchCount:       1,
			AutoConfirmed:      1,
			TotalAmount:        decimal.NewFromInt(170000),
			MatchedAmount:      decimal.NewFromInt(50000),
		},
		CreatedPayments: []*models.Payment{
			{ID: 1, InvoiceID: 100, Amount: decimal.NewFromInt(50000), ReceiptNumber: "2026-01151234"},
		},
	}
}

func TestNewReportGenerator(t *testing.T) {
	// Nil config selects defaults.
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if generator == nil {
		t.Fatal("Expected a generator")
	}

	// Invalid format is rejected.
	if _, err := NewReportGenerator(&ReportConfig{Format: "xml", MaxRowsPerSection: 10}); err == nil {
		t.Error("Expected error for invalid format")
	}

	if _, err := NewReportGenerator(&ReportConfig{Format: FormatConsole, MaxRowsPerSection: 0}); err == nil {
		t.Error("Expected error for zero max rows")
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	config := DefaultReportConfig()
	config.IncludeCandidates = true
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"SUMMARY",
		"PARSE ERRORS",
		"NEEDS REVIEW",
		"UNMATCHED",
		"CREATED PAYMENTS",
		"line 5: amount is empty",
		"모르는사람",
		"2026-01151234",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Console report missing %q:\n%s", want, output)
		}
	}
}

func TestGenerateJSONReport(t *testing.T) {
	generator, err := NewReportGenerator(&ReportConfig{Format: FormatJSON, MaxRowsPerSection: 10})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON report does not parse: %v", err)
	}
	if decoded["success"] != true {
		t.Error("Expected success field in JSON output")
	}
	if _, ok := decoded["summary"]; !ok {
		t.Error("Expected summary field in JSON output")
	}
}

func TestGenerateCSVReport(t *testing.T) {
	generator, err := NewReportGenerator(&ReportConfig{
		Format:            FormatCSV,
		MaxRowsPerSection: 10,
		CSVDelimiter:      ',',
		CSVHeaders:        true,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// Header plus one record per resolved row.
	if len(lines) != 4 {
		t.Fatalf("Expected 4 CSV lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Line,Date,Depositor") {
		t.Errorf("Unexpected CSV header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "matched") || !strings.Contains(lines[1], "100") {
		t.Errorf("Matched row should carry status and invoice ID: %s", lines[1])
	}
}

func TestGenerateReportNilResult(t *testing.T) {
	generator, _ := NewReportGenerator(nil)
	if err := generator.GenerateReport(nil, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for nil result")
	}
}
