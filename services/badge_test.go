package services

import (
	"testing"

	"task-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBadgeFixture(t *testing.T) (*ProgressionService, *BadgeService) {
	db := newTestDB(t)
	identity := &fakeIdentity{capabilities: map[string][]string{
		"admin-1": {CapabilityValidateXP, CapabilityManageBadges, CapabilityValidateQuest, CapabilityGrantXP},
	}}
	progression := NewProgressionService(db, NopNotifier{})
	badges := NewBadgeService(db, progression, identity, NopNotifier{})
	return progression, badges
}

func TestBadgeRewardCascade(t *testing.T) {
	progression, badges := newBadgeFixture(t)
	_, err := progression.EnsureRecord("user-1")
	require.NoError(t, err)

	// 485 XP fires xp_100 (+20) on the first pass; its reward pushes the
	// total to 505 so xp_500 (+50) fires on the second. The loop must settle
	// at 555 with no further grants.
	res, err := progression.AwardXP("user-1", 485, "test")
	require.NoError(t, err)

	assert.Equal(t, int64(555), res.Progress.TotalXP)
	assert.ElementsMatch(t,
		[]models.BadgeCode{models.BadgeXP100, models.BadgeXP500},
		badgeCodesOfDefs(res.NewBadges))

	grants, err := badges.ListGrants("user-1")
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

func TestBadgeGrantIdempotent(t *testing.T) {
	progression, badges := newBadgeFixture(t)
	_, err := progression.EnsureRecord("user-1")
	require.NoError(t, err)

	_, err = progression.AwardXP("user-1", 120, "test")
	require.NoError(t, err)
	res, err := progression.AwardXP("user-1", 10, "test")
	require.NoError(t, err)
	assert.Empty(t, res.NewBadges)

	grants, err := badges.ListGrants("user-1")
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeCode{models.BadgeXP100}, badgeCodesOf(grants))
}

func TestGrantQuestBadgeReturnsRewardCascade(t *testing.T) {
	progression, badges := newBadgeFixture(t)
	_, err := progression.EnsureRecord("user-1")
	require.NoError(t, err)
	_, err = progression.AwardXP("user-1", 80, "test")
	require.NoError(t, err)

	// orientation_graduate's 25 XP reward pushes 80 → 105, cascading xp_100.
	var reward *AwardResult
	err = badges.DB.Transaction(func(tx *gorm.DB) error {
		granted, r, err := badges.GrantQuestBadgeTx(tx, "user-1", models.QuestFirstTask, models.BadgeOrientationDone)
		require.NoError(t, err)
		assert.True(t, granted)
		reward = r
		return nil
	})
	require.NoError(t, err)

	require.NotNil(t, reward)
	assert.Equal(t, []models.BadgeCode{models.BadgeXP100}, badgeCodesOfDefs(reward.NewBadges))
	assert.Equal(t, int64(125), reward.Progress.TotalXP)

	// Re-granting is a no-op with no reward result.
	err = badges.DB.Transaction(func(tx *gorm.DB) error {
		granted, r, err := badges.GrantQuestBadgeTx(tx, "user-1", models.QuestFirstTask, models.BadgeOrientationDone)
		require.NoError(t, err)
		assert.False(t, granted)
		assert.Nil(t, r)
		return nil
	})
	require.NoError(t, err)

	grants, err := badges.ListGrants("user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]models.BadgeCode{models.BadgeOrientationDone, models.BadgeXP100},
		badgeCodesOf(grants))
}

func TestManualGrant(t *testing.T) {
	_, badges := newBadgeFixture(t)

	grant, err := badges.ManualGrant("admin-1", "user-1", models.BadgeStreak3)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", grant.GrantedBy)

	// The badge's reward XP went through the ledger.
	prog, err := badges.Progression.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), prog.TotalXP)

	// Granting twice is a conflict, not a silent no-op.
	_, err = badges.ManualGrant("admin-1", "user-1", models.BadgeStreak3)
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestManualGrantAuthorization(t *testing.T) {
	_, badges := newBadgeFixture(t)

	_, err := badges.ManualGrant("user-2", "user-1", models.BadgeStreak3)
	var authz *AuthorizationError
	assert.ErrorAs(t, err, &authz)
}

func TestManualGrantUnknownCode(t *testing.T) {
	_, badges := newBadgeFixture(t)

	_, err := badges.ManualGrant("admin-1", "user-1", models.BadgeCode("no_such_badge"))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRemoveGrantSubtractsReward(t *testing.T) {
	progression, badges := newBadgeFixture(t)
	_, err := progression.EnsureRecord("user-1")
	require.NoError(t, err)

	// xp_1000's 100 XP reward also trips xp_100 (+20) → total 120.
	_, err = badges.ManualGrant("admin-1", "user-1", models.BadgeXP1000)
	require.NoError(t, err)
	prog, err := progression.GetRecord("user-1")
	require.NoError(t, err)
	require.Equal(t, int64(120), prog.TotalXP)

	require.NoError(t, badges.RemoveGrant("admin-1", "user-1", models.BadgeXP1000))

	prog, err = progression.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), prog.TotalXP)
	assert.Equal(t, 1, prog.Level)

	grants, err := badges.ListGrants("user-1")
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeCode{models.BadgeXP100}, badgeCodesOf(grants))

	// Removal history entry carries the negative delta.
	last := prog.History[len(prog.History)-1]
	assert.Equal(t, int64(-100), last.Amount)
	assert.Equal(t, "badge_removed:xp_1000", last.Source)
}

func TestRemoveGrantClampsAtZero(t *testing.T) {
	progression, badges := newBadgeFixture(t)
	_, err := progression.EnsureRecord("user-1")
	require.NoError(t, err)

	_, err = badges.ManualGrant("admin-1", "user-1", models.BadgeStreak7)
	require.NoError(t, err)

	// Force a total below the badge's reward to exercise the clamp.
	require.NoError(t, badges.DB.Model(&models.UserProgression{}).
		Where("external_user_id = ?", "user-1").
		Update("total_xp", 10).Error)

	require.NoError(t, badges.RemoveGrant("admin-1", "user-1", models.BadgeStreak7))

	prog, err := progression.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), prog.TotalXP)
	assert.Equal(t, 1, prog.Level)
	last := prog.History[len(prog.History)-1]
	assert.Equal(t, int64(-10), last.Amount)
}

func TestRemoveGrantNotFound(t *testing.T) {
	_, badges := newBadgeFixture(t)

	err := badges.RemoveGrant("admin-1", "user-1", models.BadgeStreak3)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
