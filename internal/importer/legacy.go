package importer

import (
	"context"

	"membership-reconciliation-service/internal/models"
	"membership-reconciliation-service/pkg/logger"
)

// MemberRepository is the legacy direct-repository shape kept for callers
// that have not migrated to a MembershipReadPort.
//
// Deprecated: inject a MembershipReadPort instead.
type MemberRepository interface {
	FindByIDs(ctx context.Context, ids []int64) ([]*models.MemberBasicInfo, error)
}

// LegacyMemberDirectory adapts a MemberRepository to the MembershipReadPort
// contract. Every call logs a deprecation warning so the remaining callers
// are visible in operation.
type LegacyMemberDirectory struct {
	repo   MemberRepository
	logger logger.Logger
}

// NewLegacyMemberDirectory wraps a direct member repository in the read
// port contract.
func NewLegacyMemberDirectory(repo MemberRepository) *LegacyMemberDirectory {
	return &LegacyMemberDirectory{
		repo:   repo,
		logger: logger.GetGlobalLogger().WithComponent("legacy_member_directory"),
	}
}

// GetMembersByIDs implements MembershipReadPort through the legacy
// repository.
func (d *LegacyMemberDirectory) GetMembersByIDs(ctx context.Context, ids []int64) ([]*models.MemberBasicInfo, error) {
	d.logger.Warn("Using deprecated direct member repository; inject a MembershipReadPort instead")
	return d.repo.FindByIDs(ctx, ids)
}
