// Package models defines the domain records shared across the import
// pipeline: parsed statement rows, invoices, member info and payments.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of a membership-fee invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// String returns the string representation of InvoiceStatus.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid checks if the invoice status is a known value.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusSent, InvoiceStatusOverdue,
		InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// OpenInvoiceStatuses are the statuses an invoice can have while still
// awaiting payment. Imports only match against invoices in these states.
func OpenInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusPending, InvoiceStatusSent, InvoiceStatusOverdue}
}

// Invoice represents a member's fee obligation for a specific year.
type Invoice struct {
	ID         int64            `json:"id"`
	MemberID   int64            `json:"memberId"`
	Year       int              `json:"year"`
	Amount     decimal.Decimal  `json:"amount"`
	Status     InvoiceStatus    `json:"status"`
	PaidAt     *time.Time       `json:"paidAt,omitempty"`
	PaidAmount *decimal.Decimal `json:"paidAmount,omitempty"`
}

// Validate performs basic validation on the Invoice.
func (inv *Invoice) Validate() error {
	if inv.MemberID <= 0 {
		return fmt.Errorf("invoice member ID must be positive")
	}

	if inv.Year <= 0 {
		return fmt.Errorf("invoice year must be positive")
	}

	if !inv.Amount.IsPositive() {
		return fmt.Errorf("invoice amount must be positive")
	}

	if !inv.Status.IsValid() {
		return fmt.Errorf("invalid invoice status: %s", inv.Status)
	}

	return nil
}

// IsOpen reports whether the invoice still awaits payment.
func (inv *Invoice) IsOpen() bool {
	for _, status := range OpenInvoiceStatuses() {
		if inv.Status == status {
			return true
		}
	}
	return false
}

// MarkPaid transitions the invoice to paid with the settled amount.
// The confirmation time is wall clock; the payment itself carries the
// bank transaction date.
func (inv *Invoice) MarkPaid(amount decimal.Decimal, at time.Time) {
	inv.Status = InvoiceStatusPaid
	inv.PaidAt = &at
	inv.PaidAmount = &amount
}

// String returns a string representation of the Invoice.
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{ID: %d, Member: %d, Year: %d, Amount: %s, Status: %s}",
		inv.ID, inv.MemberID, inv.Year, inv.Amount.String(), inv.Status)
}

// MemberBasicInfo carries the member attributes needed for matching.
type MemberBasicInfo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
}

// Validate performs basic validation on the member info.
func (m *MemberBasicInfo) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("member ID must be positive")
	}

	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("member name cannot be empty")
	}

	return nil
}

// PaymentMethod identifies how a payment was settled.
type PaymentMethod string

// PaymentMethodBankTransfer is the only method the import engine creates.
const PaymentMethodBankTransfer PaymentMethod = "bank_transfer"

// PaymentStatus represents the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is a recorded settlement against exactly one invoice.
type Payment struct {
	ID            int64           `json:"id"`
	InvoiceID     int64           `json:"invoiceId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	Status        PaymentStatus   `json:"status"`
	PaidAt        time.Time       `json:"paidAt"`
	ReceiptNumber string          `json:"receiptNumber"`
	Note          string          `json:"note,omitempty"`
}

// Validate performs basic validation on the Payment.
func (p *Payment) Validate() error {
	if p.InvoiceID <= 0 {
		return fmt.Errorf("payment invoice ID must be positive")
	}

	if !p.Amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive")
	}

	if p.PaidAt.IsZero() {
		return fmt.Errorf("payment time cannot be zero")
	}

	return nil
}

// String returns a string representation of the Payment.
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %d, Invoice: %d, Amount: %s, Receipt: %s}",
		p.ID, p.InvoiceID, p.Amount.String(), p.ReceiptNumber)
}

// CsvRow is one valid deposit row extracted from a bank statement export.
type CsvRow struct {
	TransactionDate string          `json:"transactionDate"`
	DepositorName   string          `json:"depositorName"`
	Amount          decimal.Decimal `json:"amount"`
	Memo            string          `json:"memo,omitempty"`
	Line            int             `json:"line"`
}

// String returns a string representation of the CsvRow.
func (r *CsvRow) String() string {
	return fmt.Sprintf("CsvRow{Line: %d, Date: %s, Depositor: %s, Amount: %s}",
		r.Line, r.TransactionDate, r.DepositorName, r.Amount.String())
}

// RowError captures a single unparseable statement line. A row error never
// aborts the batch; the remaining lines are still processed.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParsedCsvData is the outcome of parsing one statement file: the valid
// deposit rows, per-line errors, and aggregate figures.
type ParsedCsvData struct {
	Rows        []CsvRow        `json:"rows"`
	Errors      []RowError      `json:"errors"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ValidCount  int             `json:"validCount"`
}

// HasErrors returns true if any line failed to parse.
func (p *ParsedCsvData) HasErrors() bool {
	return len(p.Errors) > 0
}

// String returns a human-readable summary of the parse outcome.
func (p *ParsedCsvData) String() string {
	return fmt.Sprintf("Parsed %d rows (total %s), %d errors",
		p.ValidCount, p.TotalAmount.String(), len(p.Errors))
}

// AuditEntry is one append-only audit log record emitted by the import
// engine. Failures to persist audit entries never roll back payments.
type AuditEntry struct {
	ID         string                 `json:"id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entityType"`
	EntityID   int64                  `json:"entityId"`
	Year       int                    `json:"year,omitempty"`
	MemberID   int64                  `json:"memberId,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	ActorID    string                 `json:"actorId,omitempty"`
	ActorType  string                 `json:"actorType"`
	CreatedAt  time.Time              `json:"createdAt"`
}
