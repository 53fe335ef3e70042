// Package importer orchestrates the end-to-end bank statement import:
// parse, match against open invoices, aggregate a summary, and (outside
// dry-run) auto-confirm high-confidence matches by creating payments.
package importer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"membership-reconciliation-service/internal/matcher"
	"membership-reconciliation-service/internal/models"
	"membership-reconciliation-service/internal/parsers"
	"membership-reconciliation-service/pkg/errors"
	"membership-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// DefaultAutoConfirmThreshold is the minimum confidence at which a match is
// applied without human review.
const DefaultAutoConfirmThreshold = 90

// progressInterval controls how often the batch tracker logs during an
// import.
const progressInterval = 100

// ImportOptions configures one import invocation.
type ImportOptions struct {
	Year                 int    `json:"year"`
	CsvContent           string `json:"csvContent"`
	CsvFormat            string `json:"csvFormat"`
	AutoConfirmThreshold int    `json:"autoConfirmThreshold"`
	DryRun               bool   `json:"dryRun"`
}

// Summary aggregates the per-status outcome counts of one import.
type Summary struct {
	MatchedCount       int             `json:"matchedCount"`
	MultipleMatchCount int             `json:"multipleMatchCount"`
	NoMatchCount       int             `json:"noMatchCount"`
	AlreadyPaidCount   int             `json:"alreadyPaidCount"`
	AutoConfirmed      int             `json:"autoConfirmed"`
	PendingReview      int             `json:"pendingReview"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	MatchedAmount      decimal.Decimal `json:"matchedAmount"`
}

// ImportResult is the top-level output of an import invocation.
// CreatedPayments is nil on dry runs.
type ImportResult struct {
	Success         bool                   `json:"success"`
	Parsed          *models.ParsedCsvData  `json:"parsed"`
	Matches         []*matcher.MatchResult `json:"matches"`
	Summary         Summary                `json:"summary"`
	CreatedPayments []*models.Payment      `json:"createdPayments,omitempty"`
}

// UnmatchedAction is the operator's disposition decision for a row that
// could not be matched automatically.
type UnmatchedAction string

const (
	ActionSkip          UnmatchedAction = "skip"
	ActionCreatePending UnmatchedAction = "create_pending"
	ActionRefund        UnmatchedAction = "refund"
)

// IsValid checks if the action is a known disposition.
func (a UnmatchedAction) IsValid() bool {
	switch a {
	case ActionSkip, ActionCreatePending, ActionRefund:
		return true
	}
	return false
}

// ImportService drives statement imports against the persistence
// collaborators. All four ports are required at construction.
type ImportService struct {
	invoices InvoiceRepository
	payments PaymentRepository
	members  MembershipReadPort
	audit    AuditLogService
	logger   logger.Logger

	now  func() time.Time
	rand *rand.Rand
}

// NewImportService creates an import service. All collaborators are
// required; there is no implicit fallback path (wrap a legacy repository in
// a LegacyMemberDirectory explicitly if needed).
func NewImportService(
	invoices InvoiceRepository,
	payments PaymentRepository,
	members MembershipReadPort,
	audit AuditLogService,
) (*ImportService, error) {

	if invoices == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "invoice_repository", nil, nil)
	}
	if payments == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "payment_repository", nil, nil)
	}
	if members == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "membership_read_port", nil, nil)
	}
	if audit == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "audit_log_service", nil, nil)
	}

	return &ImportService{
		invoices: invoices,
		payments: payments,
		members:  members,
		audit:    audit,
		logger:   logger.GetGlobalLogger().WithComponent("import_service"),
		now:      time.Now,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// ImportCsv runs the full import flow for one statement file.
//
// Rows are resolved in input order so summaries are deterministic. With
// zero valid rows the call is a no-op returning an all-zero result, not an
// error. Outside dry-run, matched rows at or above the confidence threshold
// are settled by creating payments; one audit entry summarizes the batch.
func (s *ImportService) ImportCsv(ctx context.Context, opts ImportOptions, performedBy string) (*ImportResult, error) {
	threshold := opts.AutoConfirmThreshold
	if threshold <= 0 {
		threshold = DefaultAutoConfirmThreshold
	}

	s.logger.WithFields(logger.Fields{
		"year":      opts.Year,
		"format":    opts.CsvFormat,
		"threshold": threshold,
		"dry_run":   opts.DryRun,
	}).Info("Starting CSV import")

	parser := parsers.NewStatementParser(opts.CsvFormat)
	parsed := parser.ParseCsv(opts.CsvContent)

	result := &ImportResult{
		Parsed: parsed,
		Summary: Summary{
			TotalAmount:   parsed.TotalAmount,
			MatchedAmount: decimal.Zero,
		},
	}

	if parsed.ValidCount == 0 {
		s.logger.Warn("No valid rows parsed, import is a no-op")
		return result, nil
	}

	openInvoices, membersByID, err := s.loadMatchingContext(ctx, opts.Year)
	if err != nil {
		return nil, err
	}

	resolver := matcher.NewResolver(&paymentLookup{payments: s.payments})
	tracker := logger.NewBatchTracker(s.logger, "csv_import", parsed.ValidCount, progressInterval)

	for i := range parsed.Rows {
		match, err := resolver.FindMatch(ctx, &parsed.Rows[i], openInvoices, membersByID, opts.Year)
		if err != nil {
			return nil, errors.WrapIfNeeded(err, errors.CategoryImport, errors.CodeProcessingError, "row matching failed")
		}

		result.Matches = append(result.Matches, match)
		s.tally(&result.Summary, match)
		tracker.Increment()
	}
	tracker.Finish()

	s.classifyForConfirmation(&result.Summary, result.Matches, threshold)

	if !opts.DryRun {
		if err := s.autoConfirm(ctx, result, opts.Year, threshold, performedBy); err != nil {
			return nil, err
		}
		s.appendBatchAudit(ctx, opts, result, performedBy)
	}

	result.Success = true

	s.logger.WithFields(logger.Fields{
		"matched":        result.Summary.MatchedCount,
		"multiple":       result.Summary.MultipleMatchCount,
		"no_match":       result.Summary.NoMatchCount,
		"already_paid":   result.Summary.AlreadyPaidCount,
		"auto_confirmed": result.Summary.AutoConfirmed,
		"pending_review": result.Summary.PendingReview,
	}).Info("CSV import completed")

	return result, nil
}

// loadMatchingContext loads the open invoices for the year and the member
// records they reference, once per batch. Rows share these snapshots.
func (s *ImportService) loadMatchingContext(ctx context.Context, year int) ([]*models.Invoice, map[int64]*models.MemberBasicInfo, error) {
	openInvoices, err := s.invoices.FindByYearAndStatus(ctx, year, models.OpenInvoiceStatuses())
	if err != nil {
		return nil, nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "loading open invoices failed")
	}

	idSet := make(map[int64]struct{}, len(openInvoices))
	ids := make([]int64, 0, len(openInvoices))
	for _, invoice := range openInvoices {
		if _, seen := idSet[invoice.MemberID]; !seen {
			idSet[invoice.MemberID] = struct{}{}
			ids = append(ids, invoice.MemberID)
		}
	}

	members, err := s.members.GetMembersByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "loading members failed")
	}

	membersByID := make(map[int64]*models.MemberBasicInfo, len(members))
	for _, member := range members {
		membersByID[member.ID] = member
	}

	s.logger.WithFields(logger.Fields{
		"open_invoices": len(openInvoices),
		"members":       len(membersByID),
	}).Debug("Loaded matching context")

	return openInvoices, membersByID, nil
}

// tally updates the per-status counts and matched amount for one result.
func (s *ImportService) tally(summary *Summary, match *matcher.MatchResult) {
	switch match.Status {
	case matcher.StatusMatched:
		summary.MatchedCount++
		summary.MatchedAmount = summary.MatchedAmount.Add(match.Row.Amount)
	case matcher.StatusMultipleMatches:
		summary.MultipleMatchCount++
	case matcher.StatusNoMatch:
		summary.NoMatchCount++
	case matcher.StatusAlreadyPaid:
		summary.AlreadyPaidCount++
	}
}

// classifyForConfirmation splits actionable results into the auto-confirm
// and pending-review buckets. On dry runs AutoConfirmed is the would-be
// count; actual creation may reduce it through the duplicate guard.
func (s *ImportService) classifyForConfirmation(summary *Summary, matches []*matcher.MatchResult, threshold int) {
	for _, match := range matches {
		switch {
		case match.Status == matcher.StatusMatched && match.Confidence >= threshold:
			summary.AutoConfirmed++
		case match.Status == matcher.StatusMatched || match.Status == matcher.StatusMultipleMatches:
			summary.PendingReview++
		}
	}
}

// autoConfirm creates payments for matched rows at or above the threshold.
// Rows whose invoice gained a completed payment in the meantime are skipped
// and removed from the confirmed count.
func (s *ImportService) autoConfirm(ctx context.Context, result *ImportResult, year, threshold int, performedBy string) error {
	confirmed := 0

	for _, match := range result.Matches {
		if match.Status != matcher.StatusMatched || match.Confidence < threshold {
			continue
		}

		payment, err := s.createPayment(ctx, match, year, performedBy, false)
		if err != nil {
			return err
		}
		if payment == nil {
			// Duplicate guard fired; the invoice is already settled.
			continue
		}

		result.CreatedPayments = append(result.CreatedPayments, payment)
		confirmed++
	}

	result.Summary.AutoConfirmed = confirmed
	return nil
}

// createPayment settles one matched row. It re-checks for an existing
// completed payment immediately before insert and returns nil (no error)
// when one exists, so retries and concurrent imports cannot double-pay.
func (s *ImportService) createPayment(ctx context.Context, match *matcher.MatchResult, year int, performedBy string, manual bool) (*models.Payment, error) {
	invoice := match.MatchedInvoice
	member := match.MatchedMember

	existing, err := s.payments.FindCompletedByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "duplicate payment check failed")
	}
	if existing != nil {
		s.logger.WithFields(logger.Fields{
			"invoice_id": invoice.ID,
			"line":       match.Row.Line,
		}).Warn("Completed payment already exists, skipping creation")
		return nil, nil
	}

	paidAt := parsers.ParseTransactionDate(match.Row.TransactionDate, s.now())

	note := fmt.Sprintf("Auto-matched from bank CSV (confidence %d%%, depositor %s)",
		match.Confidence, match.Row.DepositorName)
	action := "payment_auto_confirmed"
	if manual {
		note = fmt.Sprintf("Manual match from bank CSV (depositor %s)", match.Row.DepositorName)
		action = "payment_manual_confirmed"
	}

	payment := &models.Payment{
		InvoiceID:     invoice.ID,
		Amount:        match.Row.Amount,
		Method:        models.PaymentMethodBankTransfer,
		Status:        models.PaymentStatusCompleted,
		PaidAt:        paidAt,
		ReceiptNumber: s.generateReceiptNumber(year, paidAt),
		Note:          note,
	}

	invoice.MarkPaid(match.Row.Amount, s.now())

	if settler, ok := s.payments.(TransactionalSettler); ok {
		if err := settler.SettlePayment(ctx, payment, invoice); err != nil {
			return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeTransactionFailed, "payment settle failed")
		}
	} else {
		if err := s.payments.Save(ctx, payment); err != nil {
			return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeTransactionFailed, "payment insert failed")
		}
		if err := s.invoices.Save(ctx, invoice); err != nil {
			return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeTransactionFailed, "invoice update failed")
		}
	}

	s.appendAudit(ctx, &models.AuditEntry{
		Action:     action,
		EntityType: "payment",
		EntityID:   payment.ID,
		Year:       invoice.Year,
		MemberID:   memberID(member),
		Data: map[string]interface{}{
			"invoiceId":     invoice.ID,
			"amount":        match.Row.Amount.String(),
			"confidence":    match.Confidence,
			"depositorName": match.Row.DepositorName,
			"reason":        match.Reason,
			"receiptNumber": payment.ReceiptNumber,
		},
		ActorID:   performedBy,
		ActorType: actorType(performedBy),
		CreatedAt: s.now(),
	})

	return payment, nil
}

// ConfirmMatch is the operator-driven path for pending-review rows. It
// binds the row to an explicit invoice and settles it, refusing when the
// invoice already has a completed payment.
func (s *ImportService) ConfirmMatch(ctx context.Context, row *models.CsvRow, invoiceID int64, performedBy string) (*models.Payment, error) {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "invoice lookup failed")
	}
	if invoice == nil {
		return nil, errors.ImportError(errors.CodeInvoiceNotFound, "manual confirmation", nil).
			WithContext("invoice_id", invoiceID)
	}

	existing, err := s.payments.FindCompletedByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "duplicate payment check failed")
	}
	if existing != nil {
		return nil, errors.ImportError(errors.CodeDuplicatePayment, "manual confirmation", nil).
			WithContext("invoice_id", invoiceID)
	}

	match := &matcher.MatchResult{
		Row:            *row,
		Status:         matcher.StatusMatched,
		MatchedInvoice: invoice,
	}

	payment, err := s.createPayment(ctx, match, invoice.Year, performedBy, true)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		// Lost the race between the explicit check and the insert re-check.
		return nil, errors.ImportError(errors.CodeDuplicatePayment, "manual confirmation", nil).
			WithContext("invoice_id", invoiceID)
	}

	return payment, nil
}

// HandleUnmatched records the operator's disposition decision for a row
// that stays unmatched. It only writes an audit entry; invoice and payment
// state is untouched (downstream manual workflows act on the decision).
func (s *ImportService) HandleUnmatched(ctx context.Context, row *models.CsvRow, action UnmatchedAction, note, performedBy string) error {
	if !action.IsValid() {
		return errors.ValidationError(errors.CodeInvalidAction, "action", string(action))
	}

	s.appendAudit(ctx, &models.AuditEntry{
		Action:     "unmatched_disposition",
		EntityType: "csv_row",
		Data: map[string]interface{}{
			"transactionDate": row.TransactionDate,
			"depositorName":   row.DepositorName,
			"amount":          row.Amount.String(),
			"memo":            row.Memo,
			"disposition":     string(action),
			"note":            note,
		},
		ActorID:   performedBy,
		ActorType: actorType(performedBy),
		CreatedAt: s.now(),
	})

	return nil
}

// appendBatchAudit writes the single per-import audit entry.
func (s *ImportService) appendBatchAudit(ctx context.Context, opts ImportOptions, result *ImportResult, performedBy string) {
	s.appendAudit(ctx, &models.AuditEntry{
		Action:     "csv_import",
		EntityType: "payment_batch",
		Year:       opts.Year,
		Data: map[string]interface{}{
			"format":        opts.CsvFormat,
			"validRows":     result.Parsed.ValidCount,
			"parseErrors":   len(result.Parsed.Errors),
			"matched":       result.Summary.MatchedCount,
			"multiple":      result.Summary.MultipleMatchCount,
			"noMatch":       result.Summary.NoMatchCount,
			"alreadyPaid":   result.Summary.AlreadyPaidCount,
			"autoConfirmed": result.Summary.AutoConfirmed,
			"pendingReview": result.Summary.PendingReview,
			"totalAmount":   result.Summary.TotalAmount.String(),
			"matchedAmount": result.Summary.MatchedAmount.String(),
		},
		ActorID:   performedBy,
		ActorType: actorType(performedBy),
		CreatedAt: s.now(),
	})
}

// appendAudit writes one audit entry. The audit sink is fire-and-forget:
// failures are logged and never affect payment state.
func (s *ImportService) appendAudit(ctx context.Context, entry *models.AuditEntry) {
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", entry.Action).Warn("Audit log append failed")
	}
}

// generateReceiptNumber builds a {year}-{MMDD}{4 random digits} receipt
// number from the bank transaction date.
func (s *ImportService) generateReceiptNumber(year int, paidAt time.Time) string {
	return fmt.Sprintf("%d-%s%04d", year, paidAt.Format("0102"), s.rand.Intn(10000))
}

func memberID(member *models.MemberBasicInfo) int64 {
	if member == nil {
		return 0
	}
	return member.ID
}

func actorType(performedBy string) string {
	if performedBy == "" {
		return "system"
	}
	return "admin"
}
