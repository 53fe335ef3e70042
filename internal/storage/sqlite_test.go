package storage

import (
	"context"
	"testing"
	"time"

	"membership-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedMember(t *testing.T, store *Store, name, license string) *models.MemberBasicInfo {
	t.Helper()
	member := &models.MemberBasicInfo{Name: name, LicenseNumber: license}
	require.NoError(t, store.AddMember(context.Background(), member))
	require.NotZero(t, member.ID)
	return member
}

func seedInvoice(t *testing.T, store *Store, memberID int64, year int, amount int64, status models.InvoiceStatus) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		MemberID: memberID,
		Year:     year,
		Amount:   decimal.NewFromInt(amount),
		Status:   status,
	}
	require.NoError(t, store.Invoices.Save(context.Background(), invoice))
	require.NotZero(t, invoice.ID)
	return invoice
}

func TestMemberRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	kim := seedMember(t, store, "김철수", "12345")
	lee := seedMember(t, store, "이영희", "")

	members, err := store.GetMembersByIDs(ctx, []int64{kim.ID, lee.ID, 9999})
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "김철수", members[0].Name)
	assert.Equal(t, "12345", members[0].LicenseNumber)

	empty, err := store.GetMembersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestInvoiceRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	member := seedMember(t, store, "김철수", "")
	invoice := seedInvoice(t, store, member.ID, 2026, 50000, models.InvoiceStatusSent)

	found, err := store.Invoices.FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, member.ID, found.MemberID)
	assert.True(t, found.Amount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, models.InvoiceStatusSent, found.Status)
	assert.Nil(t, found.PaidAt)
	assert.Nil(t, found.PaidAmount)

	// Update through MarkPaid.
	found.MarkPaid(decimal.NewFromInt(50000), time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Invoices.Save(ctx, found))

	updated, err := store.Invoices.FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, updated.Status)
	require.NotNil(t, updated.PaidAt)
	require.NotNil(t, updated.PaidAmount)
	assert.True(t, updated.PaidAmount.Equal(decimal.NewFromInt(50000)))
}

func TestInvoiceFindByIDMissing(t *testing.T) {
	store := newTestStore(t)

	found, err := store.Invoices.FindByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindByYearAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	member := seedMember(t, store, "김철수", "")
	seedInvoice(t, store, member.ID, 2026, 50000, models.InvoiceStatusSent)
	seedInvoice(t, store, member.ID, 2026, 60000, models.InvoiceStatusOverdue)
	seedInvoice(t, store, member.ID, 2026, 70000, models.InvoiceStatusPaid)
	seedInvoice(t, store, member.ID, 2025, 50000, models.InvoiceStatusSent)

	open, err := store.Invoices.FindByYearAndStatus(ctx, 2026, models.OpenInvoiceStatuses())
	require.NoError(t, err)
	assert.Len(t, open, 2)
	for _, invoice := range open {
		assert.Equal(t, 2026, invoice.Year)
		assert.True(t, invoice.IsOpen())
	}

	none, err := store.Invoices.FindByYearAndStatus(ctx, 2026, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPaymentRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	member := seedMember(t, store, "김철수", "")
	invoice := seedInvoice(t, store, member.ID, 2026, 50000, models.InvoiceStatusSent)

	missing, err := store.Payments.FindCompletedByInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	payment := &models.Payment{
		InvoiceID:     invoice.ID,
		Amount:        decimal.NewFromInt(50000),
		Method:        models.PaymentMethodBankTransfer,
		Status:        models.PaymentStatusCompleted,
		PaidAt:        time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		ReceiptNumber: "2026-01151234",
		Note:          "Auto-matched from bank CSV",
	}
	require.NoError(t, store.Payments.Save(ctx, payment))
	require.NotZero(t, payment.ID)

	found, err := store.Payments.FindCompletedByInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Amount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, models.PaymentStatusCompleted, found.Status)
	assert.Equal(t, "2026-01151234", found.ReceiptNumber)
}

func TestCompletedPaymentExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	member := seedMember(t, store, "김철수", "")
	invoice := seedInvoice(t, store, member.ID, 2026, 50000, models.InvoiceStatusSent)

	payment := &models.Payment{
		InvoiceID:     invoice.ID,
		Amount:        decimal.NewFromInt(50000),
		Method:        models.PaymentMethodBankTransfer,
		Status:        models.PaymentStatusCompleted,
		PaidAt:        time.Now(),
		ReceiptNumber: "r1",
	}
	require.NoError(t, store.Payments.Save(ctx, payment))

	exists, err := store.Payments.CompletedPaymentExists(ctx, decimal.NewFromInt(50000), 2026)
	require.NoError(t, err)
	assert.True(t, exists)

	// Different amount or year does not count.
	exists, err = store.Payments.CompletedPaymentExists(ctx, decimal.NewFromInt(60000), 2026)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.Payments.CompletedPaymentExists(ctx, decimal.NewFromInt(50000), 2025)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSettlePayment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	member := seedMember(t, store, "김철수", "")
	invoice := seedInvoice(t, store, member.ID, 2026, 50000, models.InvoiceStatusSent)

	payment := &models.Payment{
		InvoiceID:     invoice.ID,
		Amount:        decimal.NewFromInt(50000),
		Method:        models.PaymentMethodBankTransfer,
		Status:        models.PaymentStatusCompleted,
		PaidAt:        time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		ReceiptNumber: "r1",
	}
	invoice.MarkPaid(decimal.NewFromInt(50000), time.Now())

	require.NoError(t, store.Payments.SettlePayment(ctx, payment, invoice))
	require.NotZero(t, payment.ID)

	// Both writes are visible after the transaction.
	storedPayment, err := store.Payments.FindCompletedByInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, storedPayment)

	storedInvoice, err := store.Invoices.FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, storedInvoice.Status)
}

func TestAuditLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.AuditEntry{
		Action:     "csv_import",
		EntityType: "payment_batch",
		Year:       2026,
		Data:       map[string]interface{}{"validRows": 3},
		ActorType:  "system",
	}
	require.NoError(t, store.Log(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	require.NoError(t, store.Log(ctx, &models.AuditEntry{
		Action:     "payment_auto_confirmed",
		EntityType: "payment",
		EntityID:   1,
		ActorType:  "system",
	}))

	count, err := store.CountAuditEntries(ctx, "csv_import")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountAuditEntries(ctx, "unmatched_disposition")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
