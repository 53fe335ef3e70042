package matcher

import (
	"context"
	"sort"

	"membership-reconciliation-service/internal/models"
	"membership-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// MatchStatus classifies the outcome of resolving one deposit row.
type MatchStatus string

const (
	StatusMatched         MatchStatus = "matched"
	StatusMultipleMatches MatchStatus = "multiple_matches"
	StatusNoMatch         MatchStatus = "no_match"
	StatusAlreadyPaid     MatchStatus = "already_paid"
)

// String returns the string representation of MatchStatus.
func (s MatchStatus) String() string {
	return string(s)
}

// dominanceGap is the minimum score lead the top candidate needs over the
// runner-up for automatic selection. Anything closer goes to human review.
const dominanceGap = 20

// Candidate is one scored (invoice, member) pairing considered for a row.
type Candidate struct {
	Invoice    *models.Invoice         `json:"invoice"`
	Member     *models.MemberBasicInfo `json:"member"`
	Confidence int                     `json:"confidence"`
	Reason     string                  `json:"reason"`
}

// MatchResult wraps one deposit row with its resolved outcome.
//
// Invariants: StatusMatched implies MatchedInvoice and MatchedMember are
// set; StatusMultipleMatches implies at least two candidates with no
// dominant leader and no bound invoice.
type MatchResult struct {
	Row            models.CsvRow           `json:"row"`
	Status         MatchStatus             `json:"status"`
	Confidence     int                     `json:"confidence"`
	MatchedInvoice *models.Invoice         `json:"matchedInvoice,omitempty"`
	MatchedMember  *models.MemberBasicInfo `json:"matchedMember,omitempty"`
	Candidates     []Candidate             `json:"candidates,omitempty"`
	Reason         string                  `json:"reason,omitempty"`
}

// PaymentLookup is the read-side payment collaborator the resolver needs
// for its duplicate defenses.
type PaymentLookup interface {
	// HasCompletedPayment reports whether the invoice already carries a
	// completed payment.
	HasCompletedPayment(ctx context.Context, invoiceID int64) (bool, error)

	// CompletedPaymentExists reports whether any completed payment with the
	// exact amount exists in the given year.
	CompletedPaymentExists(ctx context.Context, amount decimal.Decimal, year int) (bool, error)
}

// Resolver scores rows against the open invoice set and classifies them.
type Resolver struct {
	payments PaymentLookup
	logger   logger.Logger
}

// NewResolver creates a resolver backed by the given payment lookup.
func NewResolver(payments PaymentLookup) *Resolver {
	return &Resolver{
		payments: payments,
		logger:   logger.GetGlobalLogger().WithComponent("match_resolver"),
	}
}

// FindMatch resolves one deposit row against the open invoices.
//
// Invoices that gained a completed payment since the caller loaded them are
// skipped (lazy re-check against concurrent confirmation). Every pairing
// with score > 0 becomes a candidate; candidates are ranked by score
// descending. A single candidate, or a leader ahead of the runner-up by at
// least the dominance gap, resolves to matched. Two or more close
// candidates resolve to multiple_matches. With no candidates at all, a
// completed payment with the same amount in the same year resolves to
// already_paid, otherwise no_match.
func (r *Resolver) FindMatch(
	ctx context.Context,
	row *models.CsvRow,
	openInvoices []*models.Invoice,
	membersByID map[int64]*models.MemberBasicInfo,
	year int,
) (*MatchResult, error) {

	var candidates []Candidate

	for _, invoice := range openInvoices {
		member, ok := membersByID[invoice.MemberID]
		if !ok {
			continue
		}

		paid, err := r.payments.HasCompletedPayment(ctx, invoice.ID)
		if err != nil {
			return nil, err
		}
		if paid {
			r.logger.WithFields(logger.Fields{
				"invoice_id": invoice.ID,
				"line":       row.Line,
			}).Debug("Skipping invoice with completed payment")
			continue
		}

		scored := Score(row, invoice, member)
		if scored.Score <= 0 {
			continue
		}

		candidates = append(candidates, Candidate{
			Invoice:    invoice,
			Member:     member,
			Confidence: scored.Score,
			Reason:     scored.Reason,
		})
	}

	if len(candidates) == 0 {
		return r.resolveNoCandidates(ctx, row, year)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	top := candidates[0]

	if len(candidates) == 1 || top.Confidence-candidates[1].Confidence >= dominanceGap {
		return &MatchResult{
			Row:            *row,
			Status:         StatusMatched,
			Confidence:     top.Confidence,
			MatchedInvoice: top.Invoice,
			MatchedMember:  top.Member,
			Candidates:     candidates,
			Reason:         top.Reason,
		}, nil
	}

	return &MatchResult{
		Row:        *row,
		Status:     StatusMultipleMatches,
		Confidence: top.Confidence,
		Candidates: candidates,
		Reason:     "multiple candidates within the dominance gap",
	}, nil
}

// resolveNoCandidates distinguishes rows whose money is likely already
// booked from genuinely unmatched rows. The heuristic matches on amount and
// year only; identical fees owed by several members in the same year can
// produce false positives, which is accepted documented behavior.
func (r *Resolver) resolveNoCandidates(ctx context.Context, row *models.CsvRow, year int) (*MatchResult, error) {
	exists, err := r.payments.CompletedPaymentExists(ctx, row.Amount, year)
	if err != nil {
		return nil, err
	}

	if exists {
		return &MatchResult{
			Row:    *row,
			Status: StatusAlreadyPaid,
			Reason: "a completed payment with this amount already exists for the year",
		}, nil
	}

	return &MatchResult{
		Row:    *row,
		Status: StatusNoMatch,
		Reason: "no open invoice scored above zero",
	}, nil
}
