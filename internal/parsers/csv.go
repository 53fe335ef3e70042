// Package parsers turns raw bank statement CSV text into structured deposit
// rows. Each bank export has its own column layout, selected through a
// fixed format table; individual malformed lines are recorded as row errors
// without aborting the batch.
package parsers

import (
	"fmt"
	"strings"
	"time"

	"membership-reconciliation-service/internal/models"
	"membership-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// StatementParser parses bank statement CSV content for one bank format.
type StatementParser struct {
	format *BankFormat
	logger logger.Logger
	now    func() time.Time
}

// NewStatementParser creates a parser for the named bank format. Unknown
// format names fall back to the standard layout.
func NewStatementParser(formatName string) *StatementParser {
	format := GetBankFormat(formatName)

	log := logger.GetGlobalLogger().WithComponent("statement_parser")
	log.WithFields(logger.Fields{
		"format":    format.Name,
		"skip_rows": format.SkipRows,
	}).Debug("Created statement parser")

	return &StatementParser{
		format: format,
		logger: log,
		now:    time.Now,
	}
}

// Format returns the bank format this parser was created with.
func (sp *StatementParser) Format() *BankFormat {
	return sp.format
}

// ParseCsv parses raw multi-line CSV text into deposit rows.
//
// Lines are split on CRLF or LF; blank lines are dropped and the configured
// number of header rows is skipped. Each remaining line is tokenized with a
// quote-aware field scanner, then the date, depositor and amount fields are
// extracted by column index. Rows missing a date or depositor, rows too
// short for the format, and rows with non-numeric amounts become RowErrors;
// rows with amount <= 0 (withdrawals, fees) are silently dropped.
func (sp *StatementParser) ParseCsv(content string) *models.ParsedCsvData {
	parsed := &models.ParsedCsvData{
		Rows:        make([]models.CsvRow, 0),
		Errors:      make([]models.RowError, 0),
		TotalAmount: decimal.Zero,
	}

	lines := splitLines(content)

	seen := 0
	for i, line := range lines {
		lineNo := i + 1

		if strings.TrimSpace(line) == "" {
			continue
		}

		// Header rows are counted over non-blank lines only.
		seen++
		if seen <= sp.format.SkipRows {
			continue
		}

		fields := splitFields(line, sp.format.Delimiter)
		if len(fields) < sp.format.MinColumns() {
			parsed.Errors = append(parsed.Errors, models.RowError{
				Line:    lineNo,
				Message: fmt.Sprintf("expected at least %d columns, got %d", sp.format.MinColumns(), len(fields)),
			})
			continue
		}

		date := strings.TrimSpace(fields[sp.format.DateColumn])
		depositor := strings.TrimSpace(fields[sp.format.NameColumn])
		memo := ""
		if sp.format.MemoColumn >= 0 && sp.format.MemoColumn < len(fields) {
			memo = strings.TrimSpace(fields[sp.format.MemoColumn])
		}

		if date == "" {
			parsed.Errors = append(parsed.Errors, models.RowError{
				Line:    lineNo,
				Message: "transaction date is empty",
			})
			continue
		}

		if depositor == "" {
			parsed.Errors = append(parsed.Errors, models.RowError{
				Line:    lineNo,
				Message: "depositor name is empty",
			})
			continue
		}

		amount, err := NormalizeAmount(fields[sp.format.AmountColumn])
		if err != nil {
			parsed.Errors = append(parsed.Errors, models.RowError{
				Line:    lineNo,
				Message: err.Error(),
			})
			continue
		}

		// Non-deposits are out of scope, not errors.
		if amount.Sign() <= 0 {
			sp.logger.WithFields(logger.Fields{
				"line":   lineNo,
				"amount": amount.String(),
			}).Debug("Skipping non-deposit row")
			continue
		}

		parsed.Rows = append(parsed.Rows, models.CsvRow{
			TransactionDate: date,
			DepositorName:   depositor,
			Amount:          amount,
			Memo:            memo,
			Line:            lineNo,
		})
		parsed.TotalAmount = parsed.TotalAmount.Add(amount)
	}

	parsed.ValidCount = len(parsed.Rows)

	sp.logger.WithFields(logger.Fields{
		"format":       sp.format.Name,
		"valid_rows":   parsed.ValidCount,
		"errors":       len(parsed.Errors),
		"total_amount": parsed.TotalAmount.String(),
	}).Info("Parsed bank statement")

	return parsed
}

// TransactionDate resolves the calendar date of a parsed row, falling back
// to the current date (with a warning) when the raw value is unparseable.
func (sp *StatementParser) TransactionDate(row *models.CsvRow) time.Time {
	now := sp.now()
	parsed := ParseTransactionDate(row.TransactionDate, now)

	if parsed.Equal(now) {
		sp.logger.WithFields(logger.Fields{
			"line": row.Line,
			"date": row.TransactionDate,
		}).Warn("Unrecognized transaction date, using current date")
	}

	return parsed
}

// splitLines breaks content on CRLF or LF. The returned slice is aligned
// with 1-based line numbers via its index; blank-line filtering happens in
// the parse loop so error line numbers stay accurate.
func splitLines(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}

// splitFields tokenizes one CSV line, honoring double-quoted fields with
// embedded delimiters and "" escapes. A simple quote-toggle scan is enough
// for the bank exports; encoding/csv is not used because lines are already
// split for per-line error attribution.
func splitFields(line string, delimiter rune) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case r == delimiter && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}

	fields = append(fields, field.String())
	return fields
}
