package matcher

import (
	"strings"

	"membership-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// Scoring weights. Additive, capped at ScoreCap; the name tiers are
// mutually exclusive (only the highest satisfied tier applies).
const (
	ScoreCap = 100

	weightAmountExact = 40
	weightAmountClose = 20

	weightNameExact   = 35
	weightNameStrong  = 25
	weightNamePartial = 15

	weightLicenseInMemo      = 25
	weightLicenseInDepositor = 15

	nameStrongThreshold  = 0.8
	namePartialThreshold = 0.5
)

// amountCloseTolerance is the absolute difference still considered a near
// match (bank fees and rounding on transfers).
var amountCloseTolerance = decimal.NewFromInt(100)

// MatchScore is the weighted confidence for one (row, invoice, member)
// pairing plus a human-readable account of which signals fired.
type MatchScore struct {
	Score  int
	Reason string
}

// Score computes the weighted confidence that a deposit row settles the
// given member's invoice.
func Score(row *models.CsvRow, invoice *models.Invoice, member *models.MemberBasicInfo) MatchScore {
	score := 0
	var reasons []string

	// Amount: exact beats close, never both.
	diff := row.Amount.Sub(invoice.Amount).Abs()
	switch {
	case row.Amount.Equal(invoice.Amount):
		score += weightAmountExact
		reasons = append(reasons, "exact amount")
	case diff.LessThanOrEqual(amountCloseTolerance):
		score += weightAmountClose
		reasons = append(reasons, "amount within tolerance")
	}

	// Name: highest satisfied tier only.
	similarity := Similarity(row.DepositorName, member.Name)
	switch {
	case similarity >= 1.0:
		score += weightNameExact
		reasons = append(reasons, "exact name")
	case similarity >= nameStrongThreshold:
		score += weightNameStrong
		reasons = append(reasons, "similar name")
	case similarity >= namePartialThreshold:
		score += weightNamePartial
		reasons = append(reasons, "partially similar name")
	}

	// License number containment, memo and depositor independently.
	if member.LicenseNumber != "" {
		if row.Memo != "" && strings.Contains(row.Memo, member.LicenseNumber) {
			score += weightLicenseInMemo
			reasons = append(reasons, "license number in memo")
		}
		if strings.Contains(row.DepositorName, member.LicenseNumber) {
			score += weightLicenseInDepositor
			reasons = append(reasons, "license number in depositor name")
		}
	}

	if score > ScoreCap {
		score = ScoreCap
	}

	return MatchScore{
		Score:  score,
		Reason: strings.Join(reasons, ", "),
	}
}
