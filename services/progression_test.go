package services

import (
	"testing"
	"time"

	"task-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRecordIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db, NopNotifier{})

	first, err := svc.EnsureRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.TotalXP)
	assert.Equal(t, 1, first.Level)

	second, err := svc.EnsureRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserProgression{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAwardXPRejectsNonPositive(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db, NopNotifier{})
	_, err := svc.EnsureRecord("user-1")
	require.NoError(t, err)

	for _, amount := range []int64{0, -10} {
		_, err := svc.AwardXP("user-1", amount, "test")
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "amount=%d", amount)
	}

	prog, err := svc.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), prog.TotalXP)
}

func TestAwardXPUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db, NopNotifier{})

	_, err := svc.AwardXP("nobody", 10, "test")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestAwardXPLevelsUpAndGrantsThresholdBadge(t *testing.T) {
	db := newTestDB(t)
	notifier := &recordingNotifier{}
	svc := NewProgressionService(db, notifier)
	_, err := svc.EnsureRecord("user-1")
	require.NoError(t, err)

	res, err := svc.AwardXP("user-1", 120, "manual")
	require.NoError(t, err)

	// 120 XP crosses level 2 and the 100-XP badge, whose 20 XP reward lands
	// in the same award.
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.Equal(t, 2, res.Progress.Level)
	assert.Equal(t, int64(140), res.Progress.TotalXP)
	assert.Equal(t, int64(40), res.Progress.XP)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, models.BadgeXP100, res.NewBadges[0].Code)

	assert.Contains(t, notifier.kinds(), NotifyLevelUp)
	assert.Contains(t, notifier.kinds(), NotifyBadgeUnlocked)

	// The post-badge state is what got persisted.
	prog, err := svc.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(140), prog.TotalXP)
	assert.Equal(t, 2, prog.Level)
}

func TestHistoryRingRetention(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db, NopNotifier{})
	_, err := svc.EnsureRecord("user-1")
	require.NoError(t, err)

	// 12 small awards stay below every badge threshold.
	for i := 0; i < 12; i++ {
		_, err := svc.AwardXP("user-1", 5, "test")
		require.NoError(t, err)
	}

	prog, err := svc.GetRecord("user-1")
	require.NoError(t, err)
	require.Len(t, prog.History, models.HistoryRetention)
	// Oldest surviving entry is award #3 (total 15); newest is #12 (total 60).
	assert.Equal(t, int64(15), prog.History[0].TotalAfter)
	assert.Equal(t, int64(60), prog.History[len(prog.History)-1].TotalAfter)
	assert.Equal(t, int64(60), prog.TotalXP)
}

func TestRecordTaskCompleted(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db, NopNotifier{})

	res, err := svc.RecordTaskCompleted("user-1", "task-42")
	require.NoError(t, err)

	// 50 task XP plus the first-task badge's 10 XP reward.
	assert.Equal(t, int64(1), res.Progress.TasksCompleted)
	assert.Equal(t, int64(60), res.Progress.TotalXP)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, models.BadgeTasks1, res.NewBadges[0].Code)
}

func TestRecordProjectCreated(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db, NopNotifier{})

	res, err := svc.RecordProjectCreated("user-1", "proj-7")
	require.NoError(t, err)

	// 100 project XP → projects_1 (+25) and xp_100 (+20) in the same pass.
	assert.Equal(t, int64(1), res.Progress.ProjectsCreated)
	assert.Equal(t, int64(145), res.Progress.TotalXP)
	assert.ElementsMatch(t,
		[]models.BadgeCode{models.BadgeProjects1, models.BadgeXP100},
		badgeCodesOfDefs(res.NewBadges))
}

func badgeCodesOfDefs(defs []models.BadgeDefinition) []models.BadgeCode {
	out := make([]models.BadgeCode, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Code)
	}
	return out
}

func TestRecordLoginStreak(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db, NopNotifier{})

	res, err := svc.RecordLogin("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Progress.LoginStreakDays)
	assert.Equal(t, int64(10), res.Progress.TotalXP)

	// Same calendar day: no XP, no streak movement.
	res, err = svc.RecordLogin("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Progress.LoginStreakDays)
	assert.Equal(t, int64(10), res.Progress.TotalXP)

	// Consecutive day extends the streak.
	yesterday := time.Now().Add(-24 * time.Hour)
	require.NoError(t, db.Model(&models.UserProgression{}).
		Where("external_user_id = ?", "user-1").
		Update("last_login_at", yesterday).Error)
	res, err = svc.RecordLogin("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Progress.LoginStreakDays)
	assert.Equal(t, int64(20), res.Progress.TotalXP)

	// A gap resets the streak to 1.
	threeDaysAgo := time.Now().Add(-72 * time.Hour)
	require.NoError(t, db.Model(&models.UserProgression{}).
		Where("external_user_id = ?", "user-1").
		Update("last_login_at", threeDaysAgo).Error)
	res, err = svc.RecordLogin("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Progress.LoginStreakDays)
}
