package importer

import (
	"context"

	"membership-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// InvoiceRepository is the invoice persistence collaborator.
type InvoiceRepository interface {
	// FindByYearAndStatus returns all invoices for the year whose status is
	// in the given set.
	FindByYearAndStatus(ctx context.Context, year int, statuses []models.InvoiceStatus) ([]*models.Invoice, error)

	// FindByID returns the invoice, or nil when it does not exist.
	FindByID(ctx context.Context, id int64) (*models.Invoice, error)

	// Save persists the invoice state.
	Save(ctx context.Context, invoice *models.Invoice) error
}

// PaymentRepository is the payment persistence collaborator.
type PaymentRepository interface {
	// FindCompletedByInvoice returns the completed payment for the invoice,
	// or nil when none exists.
	FindCompletedByInvoice(ctx context.Context, invoiceID int64) (*models.Payment, error)

	// CompletedPaymentExists reports whether any completed payment with the
	// exact amount exists in the given year.
	CompletedPaymentExists(ctx context.Context, amount decimal.Decimal, year int) (bool, error)

	// Save persists the payment and assigns its ID.
	Save(ctx context.Context, payment *models.Payment) error
}

// TransactionalSettler is an optional upgrade of PaymentRepository. When
// the repository implements it, the service settles the payment insert and
// invoice update in one atomic call instead of two sequential saves.
type TransactionalSettler interface {
	SettlePayment(ctx context.Context, payment *models.Payment, invoice *models.Invoice) error
}

// MembershipReadPort provides bulk read access to member records. It is a
// required construction dependency of the import service; the deprecated
// direct-repository path is available only through LegacyMemberDirectory.
type MembershipReadPort interface {
	GetMembersByIDs(ctx context.Context, ids []int64) ([]*models.MemberBasicInfo, error)
}

// AuditLogService is the append-only audit sink. Append failures are logged
// and never roll back payment writes.
type AuditLogService interface {
	Log(ctx context.Context, entry *models.AuditEntry) error
}

// paymentLookup adapts a PaymentRepository to the resolver's read-side
// contract.
type paymentLookup struct {
	payments PaymentRepository
}

func (pl *paymentLookup) HasCompletedPayment(ctx context.Context, invoiceID int64) (bool, error) {
	payment, err := pl.payments.FindCompletedByInvoice(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	return payment != nil, nil
}

func (pl *paymentLookup) CompletedPaymentExists(ctx context.Context, amount decimal.Decimal, year int) (bool, error) {
	return pl.payments.CompletedPaymentExists(ctx, amount, year)
}
