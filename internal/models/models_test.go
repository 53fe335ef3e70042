package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validInvoice() *Invoice {
	return &Invoice{
		ID:       1,
		MemberID: 10,
		Year:     2026,
		Amount:   decimal.NewFromInt(50000),
		Status:   InvoiceStatusSent,
	}
}

func TestInvoiceValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Invoice)
		wantErr bool
	}{
		{"valid", func(inv *Invoice) {}, false},
		{"zero member", func(inv *Invoice) { inv.MemberID = 0 }, true},
		{"zero year", func(inv *Invoice) { inv.Year = 0 }, true},
		{"zero amount", func(inv *Invoice) { inv.Amount = decimal.Zero }, true},
		{"negative amount", func(inv *Invoice) { inv.Amount = decimal.NewFromInt(-1) }, true},
		{"unknown status", func(inv *Invoice) { inv.Status = "limbo" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoice := validInvoice()
			tt.modify(invoice)
			err := invoice.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInvoiceIsOpen(t *testing.T) {
	tests := []struct {
		status InvoiceStatus
		open   bool
	}{
		{InvoiceStatusPending, true},
		{InvoiceStatusSent, true},
		{InvoiceStatusOverdue, true},
		{InvoiceStatusPaid, false},
		{InvoiceStatusCancelled, false},
	}

	for _, tt := range tests {
		invoice := validInvoice()
		invoice.Status = tt.status
		if invoice.IsOpen() != tt.open {
			t.Errorf("IsOpen() with status %s = %v, want %v", tt.status, invoice.IsOpen(), tt.open)
		}
	}
}

func TestInvoiceMarkPaid(t *testing.T) {
	invoice := validInvoice()
	at := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(50000)

	invoice.MarkPaid(amount, at)

	if invoice.Status != InvoiceStatusPaid {
		t.Errorf("Expected paid status, got %s", invoice.Status)
	}
	if invoice.PaidAt == nil || !invoice.PaidAt.Equal(at) {
		t.Error("Expected PaidAt to be set")
	}
	if invoice.PaidAmount == nil || !invoice.PaidAmount.Equal(amount) {
		t.Error("Expected PaidAmount to be set")
	}
}

func TestOpenInvoiceStatuses(t *testing.T) {
	statuses := OpenInvoiceStatuses()
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 open statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if status == InvoiceStatusPaid || status == InvoiceStatusCancelled {
			t.Errorf("Status %s must not be open", status)
		}
	}
}

func TestMemberBasicInfoValidate(t *testing.T) {
	member := &MemberBasicInfo{ID: 1, Name: "김철수"}
	if err := member.Validate(); err != nil {
		t.Errorf("Valid member rejected: %v", err)
	}

	if err := (&MemberBasicInfo{ID: 0, Name: "김철수"}).Validate(); err == nil {
		t.Error("Expected error for zero ID")
	}
	if err := (&MemberBasicInfo{ID: 1, Name: "  "}).Validate(); err == nil {
		t.Error("Expected error for blank name")
	}
}

func TestPaymentValidate(t *testing.T) {
	payment := &Payment{
		InvoiceID: 1,
		Amount:    decimal.NewFromInt(50000),
		Method:    PaymentMethodBankTransfer,
		Status:    PaymentStatusCompleted,
		PaidAt:    time.Now(),
	}
	if err := payment.Validate(); err != nil {
		t.Errorf("Valid payment rejected: %v", err)
	}

	bad := *payment
	bad.InvoiceID = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero invoice ID")
	}

	bad = *payment
	bad.Amount = decimal.Zero
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero amount")
	}

	bad = *payment
	bad.PaidAt = time.Time{}
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero paid time")
	}
}

func TestRowErrorError(t *testing.T) {
	err := &RowError{Line: 7, Message: "amount is empty"}
	expected := "line 7: amount is empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestParsedCsvDataHasErrors(t *testing.T) {
	parsed := &ParsedCsvData{}
	if parsed.HasErrors() {
		t.Error("Expected no errors on empty data")
	}

	parsed.Errors = append(parsed.Errors, RowError{Line: 1, Message: "bad"})
	if !parsed.HasErrors() {
		t.Error("Expected HasErrors after appending")
	}
}
