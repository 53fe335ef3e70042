// Package storage provides the bundled SQLite implementation of the import
// service's persistence ports: invoices, payments, members and the audit
// log. It exists so the CLI is usable end to end; deployments with their
// own persistence implement the ports directly.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"membership-reconciliation-service/internal/models"
	apperrors "membership-reconciliation-service/pkg/errors"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store owns the SQLite connection and exposes the per-aggregate
// repositories. The store itself serves member reads and the audit log.
type Store struct {
	db *sql.DB

	Invoices *InvoiceRepo
	Payments *PaymentRepo
}

// InvoiceRepo is the SQLite invoice repository.
type InvoiceRepo struct {
	db *sql.DB
}

// PaymentRepo is the SQLite payment repository.
type PaymentRepo struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS members (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	license_number TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS invoices (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	member_id   INTEGER NOT NULL REFERENCES members(id),
	year        INTEGER NOT NULL,
	amount      TEXT NOT NULL,
	status      TEXT NOT NULL,
	paid_at     TIMESTAMP,
	paid_amount TEXT
);

CREATE TABLE IF NOT EXISTS payments (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	invoice_id     INTEGER NOT NULL REFERENCES invoices(id),
	amount         TEXT NOT NULL,
	method         TEXT NOT NULL,
	status         TEXT NOT NULL,
	paid_at        TIMESTAMP NOT NULL,
	receipt_number TEXT NOT NULL,
	note           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_payments_invoice_status ON payments(invoice_id, status);
CREATE INDEX IF NOT EXISTS idx_invoices_year_status ON invoices(year, status);

CREATE TABLE IF NOT EXISTS audit_entries (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   INTEGER NOT NULL DEFAULT 0,
	year        INTEGER NOT NULL DEFAULT 0,
	member_id   INTEGER NOT NULL DEFAULT 0,
	data_json   TEXT NOT NULL DEFAULT '{}',
	actor_id    TEXT NOT NULL DEFAULT '',
	actor_type  TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
`

// NewStore opens (and if needed initializes) a SQLite database at dbPath.
// Use ":memory:" for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "open database", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "enable foreign keys", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "create schema", err)
	}

	return &Store{
		db:       db,
		Invoices: &InvoiceRepo{db: db},
		Payments: &PaymentRepo{db: db},
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// FindByYearAndStatus returns all invoices for the year with a status in
// the given set.
func (r *InvoiceRepo) FindByYearAndStatus(ctx context.Context, year int, statuses []models.InvoiceStatus) ([]*models.Invoice, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := `SELECT id, member_id, year, amount, status, paid_at, paid_amount
		FROM invoices WHERE year = ? AND status IN (?` + repeatPlaceholder(len(statuses)-1) + `) ORDER BY id`

	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, year)
	for _, status := range statuses {
		args = append(args, string(status))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "invoice query", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "invoice scan", err)
	}

	return invoices, nil
}

// FindByID returns the invoice, or nil when it does not exist.
func (r *InvoiceRepo) FindByID(ctx context.Context, id int64) (*models.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, member_id, year, amount, status, paid_at, paid_amount FROM invoices WHERE id = ?`, id)

	invoice, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Save inserts the invoice when it has no ID yet, otherwise updates it.
func (r *InvoiceRepo) Save(ctx context.Context, invoice *models.Invoice) error {
	return saveInvoice(ctx, r.db, invoice)
}

func saveInvoice(ctx context.Context, db execer, invoice *models.Invoice) error {
	var paidAt interface{}
	if invoice.PaidAt != nil {
		paidAt = invoice.PaidAt.UTC()
	}
	var paidAmount interface{}
	if invoice.PaidAmount != nil {
		paidAmount = invoice.PaidAmount.String()
	}

	if invoice.ID == 0 {
		result, err := db.ExecContext(ctx,
			`INSERT INTO invoices (member_id, year, amount, status, paid_at, paid_amount) VALUES (?, ?, ?, ?, ?, ?)`,
			invoice.MemberID, invoice.Year, invoice.Amount.String(), string(invoice.Status), paidAt, paidAmount)
		if err != nil {
			return apperrors.StorageError(apperrors.CodeQueryFailed, "invoice insert", err)
		}
		invoice.ID, err = result.LastInsertId()
		if err != nil {
			return apperrors.StorageError(apperrors.CodeQueryFailed, "invoice insert id", err)
		}
		return nil
	}

	_, err := db.ExecContext(ctx,
		`UPDATE invoices SET member_id = ?, year = ?, amount = ?, status = ?, paid_at = ?, paid_amount = ? WHERE id = ?`,
		invoice.MemberID, invoice.Year, invoice.Amount.String(), string(invoice.Status), paidAt, paidAmount, invoice.ID)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "invoice update", err)
	}
	return nil
}

// FindCompletedByInvoice returns the completed payment for the invoice, or
// nil when none exists.
func (r *PaymentRepo) FindCompletedByInvoice(ctx context.Context, invoiceID int64) (*models.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, invoice_id, amount, method, status, paid_at, receipt_number, note
		 FROM payments WHERE invoice_id = ? AND status = ? LIMIT 1`,
		invoiceID, string(models.PaymentStatusCompleted))

	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// CompletedPaymentExists reports whether any completed payment with the
// exact amount exists in the given year.
func (r *PaymentRepo) CompletedPaymentExists(ctx context.Context, amount decimal.Decimal, year int) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments p JOIN invoices i ON i.id = p.invoice_id
		 WHERE p.status = ? AND p.amount = ? AND i.year = ?`,
		string(models.PaymentStatusCompleted), amount.String(), year).Scan(&count)
	if err != nil {
		return false, apperrors.StorageError(apperrors.CodeQueryFailed, "completed payment lookup", err)
	}
	return count > 0, nil
}

// Save inserts the payment and assigns its ID.
func (r *PaymentRepo) Save(ctx context.Context, payment *models.Payment) error {
	return insertPayment(ctx, r.db, payment)
}

func insertPayment(ctx context.Context, db execer, payment *models.Payment) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO payments (invoice_id, amount, method, status, paid_at, receipt_number, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.InvoiceID, payment.Amount.String(), string(payment.Method), string(payment.Status),
		payment.PaidAt.UTC(), payment.ReceiptNumber, payment.Note)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "payment insert", err)
	}

	payment.ID, err = result.LastInsertId()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "payment insert id", err)
	}
	return nil
}

// SettlePayment inserts the payment and updates its invoice inside one
// database transaction, closing the window between the two writes.
func (r *PaymentRepo) SettlePayment(ctx context.Context, payment *models.Payment, invoice *models.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeTransactionFailed, "settle payment begin", err)
	}
	defer tx.Rollback()

	if err := insertPayment(ctx, tx, payment); err != nil {
		return err
	}
	if err := saveInvoice(ctx, tx, invoice); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.StorageError(apperrors.CodeTransactionFailed, "settle payment commit", err)
	}
	return nil
}

// GetMembersByIDs returns the member records for the given IDs. Missing
// IDs are silently absent from the result.
func (s *Store) GetMembersByIDs(ctx context.Context, ids []int64) ([]*models.MemberBasicInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, name, license_number FROM members WHERE id IN (?` + repeatPlaceholder(len(ids)-1) + `) ORDER BY id`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "member query", err)
	}
	defer rows.Close()

	var members []*models.MemberBasicInfo
	for rows.Next() {
		member := &models.MemberBasicInfo{}
		if err := rows.Scan(&member.ID, &member.Name, &member.LicenseNumber); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "member scan", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "member scan", err)
	}

	return members, nil
}

// AddMember inserts a member record and assigns its ID.
func (s *Store) AddMember(ctx context.Context, member *models.MemberBasicInfo) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (name, license_number) VALUES (?, ?)`,
		member.Name, member.LicenseNumber)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "member insert", err)
	}

	member.ID, err = result.LastInsertId()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "member insert id", err)
	}
	return nil
}

// Log appends one audit entry, assigning an ID and timestamp when missing.
func (s *Store) Log(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "audit data marshal", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, action, entity_type, entity_id, year, member_id, data_json, actor_id, actor_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.Year, entry.MemberID,
		string(dataJSON), entry.ActorID, entry.ActorType, entry.CreatedAt.UTC())
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "audit insert", err)
	}
	return nil
}

// CountAuditEntries returns the number of audit entries with the given
// action.
func (s *Store) CountAuditEntries(ctx context.Context, action string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE action = ?`, action).Scan(&count)
	if err != nil {
		return 0, apperrors.StorageError(apperrors.CodeQueryFailed, "audit count", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	var amount string
	var status string
	var paidAt sql.NullTime
	var paidAmount sql.NullString

	err := row.Scan(&invoice.ID, &invoice.MemberID, &invoice.Year, &amount, &status, &paidAt, &paidAmount)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "invoice scan", err)
	}

	invoice.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "invoice amount decode",
			fmt.Errorf("invalid stored amount '%s': %w", amount, err))
	}
	invoice.Status = models.InvoiceStatus(status)

	if paidAt.Valid {
		t := paidAt.Time
		invoice.PaidAt = &t
	}
	if paidAmount.Valid {
		d, err := decimal.NewFromString(paidAmount.String)
		if err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "invoice paid amount decode",
				fmt.Errorf("invalid stored paid amount '%s': %w", paidAmount.String, err))
		}
		invoice.PaidAmount = &d
	}

	return invoice, nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var amount, method, status string

	err := row.Scan(&payment.ID, &payment.InvoiceID, &amount, &method, &status,
		&payment.PaidAt, &payment.ReceiptNumber, &payment.Note)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "payment scan", err)
	}

	payment.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "payment amount decode",
			fmt.Errorf("invalid stored amount '%s': %w", amount, err))
	}
	payment.Method = models.PaymentMethod(method)
	payment.Status = models.PaymentStatus(status)

	return payment, nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
