// Package reporter renders import results for operators.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: per-row outcome listing for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"membership-reconciliation-service/internal/importer"
	"membership-reconciliation-service/internal/matcher"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeMatchedRows bool `json:"include_matched_rows"`
	IncludeReviewRows  bool `json:"include_review_rows"`
	IncludeUnmatched   bool `json:"include_unmatched"`
	IncludeParseErrors bool `json:"include_parse_errors"`
	IncludeCandidates  bool `json:"include_candidates"`
	MaxRowsPerSection  int  `json:"max_rows_per_section"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeMatchedRows: false,
		IncludeReviewRows:  true,
		IncludeUnmatched:   true,
		IncludeParseErrors: true,
		IncludeCandidates:  false,
		MaxRowsPerSection:  10,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxRowsPerSection < 1 {
		return fmt.Errorf("max rows per section must be at least 1, got %d", c.MaxRowsPerSection)
	}
	return nil
}

// ReportGenerator renders import results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the given configuration.
// A nil configuration selects the defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the import result to the writer
func (rg *ReportGenerator) GenerateReport(result *importer.ImportResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("import result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport renders a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *importer.ImportResult, writer io.Writer) error {
	fmt.Fprintf(writer, "BANK STATEMENT IMPORT REPORT\n\n")

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(result, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeParseErrors && len(result.Parsed.Errors) > 0 {
		fmt.Fprintf(writer, "=== PARSE ERRORS ===\n")
		rg.printParseErrors(result, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeMatchedRows {
		rg.printSection(writer, "MATCHED", result.Matches, matcher.StatusMatched)
	}
	if rg.config.IncludeReviewRows {
		rg.printSection(writer, "NEEDS REVIEW", result.Matches, matcher.StatusMultipleMatches)
	}
	if rg.config.IncludeUnmatched {
		rg.printSection(writer, "UNMATCHED", result.Matches, matcher.StatusNoMatch)
		rg.printSection(writer, "ALREADY PAID", result.Matches, matcher.StatusAlreadyPaid)
	}

	if len(result.CreatedPayments) > 0 {
		fmt.Fprintf(writer, "=== CREATED PAYMENTS ===\n")
		for i, payment := range result.CreatedPayments {
			fmt.Fprintf(writer, "  %d. Invoice %d, Amount %s, Receipt %s\n",
				i+1, payment.InvoiceID, payment.Amount.StringFixed(0), payment.ReceiptNumber)
		}
		fmt.Fprintf(writer, "\n")
	}

	return nil
}

func (rg *ReportGenerator) printSummary(result *importer.ImportResult, writer io.Writer) {
	s := result.Summary
	valid := result.Parsed.ValidCount

	fmt.Fprintf(writer, "Rows:\n")
	fmt.Fprintf(writer, "  Valid:          %d\n", valid)
	fmt.Fprintf(writer, "  Parse errors:   %d\n", len(result.Parsed.Errors))

	fmt.Fprintf(writer, "\nOutcomes:\n")
	fmt.Fprintf(writer, "  Matched:        %d (%.1f%%)\n", s.MatchedCount, percentage(s.MatchedCount, valid))
	fmt.Fprintf(writer, "  Needs review:   %d (%.1f%%)\n", s.MultipleMatchCount, percentage(s.MultipleMatchCount, valid))
	fmt.Fprintf(writer, "  Unmatched:      %d (%.1f%%)\n", s.NoMatchCount, percentage(s.NoMatchCount, valid))
	fmt.Fprintf(writer, "  Already paid:   %d (%.1f%%)\n", s.AlreadyPaidCount, percentage(s.AlreadyPaidCount, valid))

	fmt.Fprintf(writer, "\nConfirmation:\n")
	fmt.Fprintf(writer, "  Auto-confirmed: %d\n", s.AutoConfirmed)
	fmt.Fprintf(writer, "  Pending review: %d\n", s.PendingReview)

	fmt.Fprintf(writer, "\nAmounts:\n")
	fmt.Fprintf(writer, "  Total deposits: %s\n", s.TotalAmount.StringFixed(0))
	fmt.Fprintf(writer, "  Matched:        %s\n", s.MatchedAmount.StringFixed(0))
}

func (rg *ReportGenerator) printParseErrors(result *importer.ImportResult, writer io.Writer) {
	for i, rowErr := range result.Parsed.Errors {
		fmt.Fprintf(writer, "  line %d: %s\n", rowErr.Line, rowErr.Message)
		if i >= rg.config.MaxRowsPerSection-1 && len(result.Parsed.Errors) > rg.config.MaxRowsPerSection {
			fmt.Fprintf(writer, "  ... and %d more\n", len(result.Parsed.Errors)-rg.config.MaxRowsPerSection)
			break
		}
	}
}

func (rg *ReportGenerator) printSection(writer io.Writer, title string, matches []*matcher.MatchResult, status matcher.MatchStatus) {
	var selected []*matcher.MatchResult
	for _, match := range matches {
		if match.Status == status {
			selected = append(selected, match)
		}
	}
	if len(selected) == 0 {
		return
	}

	fmt.Fprintf(writer, "=== %s (%d) ===\n", title, len(selected))
	for i, match := range selected {
		fmt.Fprintf(writer, "  %d. line %d, %s, %s, confidence %d%%\n",
			i+1, match.Row.Line, match.Row.DepositorName, match.Row.Amount.StringFixed(0), match.Confidence)

		if rg.config.IncludeCandidates {
			for _, cand := range match.Candidates {
				fmt.Fprintf(writer, "     - invoice %d (%s): %d%% %s\n",
					cand.Invoice.ID, cand.Member.Name, cand.Confidence, cand.Reason)
			}
		}

		if i >= rg.config.MaxRowsPerSection-1 && len(selected) > rg.config.MaxRowsPerSection {
			fmt.Fprintf(writer, "  ... and %d more\n", len(selected)-rg.config.MaxRowsPerSection)
			break
		}
	}
	fmt.Fprintf(writer, "\n")
}

// generateJSONReport renders the result as indented JSON
func (rg *ReportGenerator) generateJSONReport(result *importer.ImportResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// generateCSVReport renders one record per resolved row
func (rg *ReportGenerator) generateCSVReport(result *importer.ImportResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Line",
			"Date",
			"Depositor",
			"Amount",
			"Status",
			"Confidence",
			"Invoice_ID",
			"Member",
			"Reason",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, match := range result.Matches {
		invoiceID := ""
		memberName := ""
		if match.MatchedInvoice != nil {
			invoiceID = strconv.FormatInt(match.MatchedInvoice.ID, 10)
		}
		if match.MatchedMember != nil {
			memberName = match.MatchedMember.Name
		}

		record := []string{
			strconv.Itoa(match.Row.Line),
			match.Row.TransactionDate,
			match.Row.DepositorName,
			match.Row.Amount.String(),
			match.Status.String(),
			strconv.Itoa(match.Confidence),
			invoiceID,
			memberName,
			match.Reason,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write row record: %w", err)
		}
	}

	return nil
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
