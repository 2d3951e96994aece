package services

import (
	"testing"
	"time"

	"task-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newXPRequestFixture(t *testing.T) (*XPRequestService, *recordingNotifier) {
	db := newTestDB(t)
	identity := &fakeIdentity{capabilities: map[string][]string{
		"admin-1": {CapabilityValidateXP, CapabilityManageBadges, CapabilityValidateQuest, CapabilityGrantXP},
	}}
	notifier := &recordingNotifier{}
	progression := NewProgressionService(db, notifier)
	return NewXPRequestService(db, progression, identity, notifier), notifier
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newXPRequestFixture(t)

	_, err := svc.Submit("user-1", SubmitInput{Description: "   ", XPAmount: 50})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Submit("user-1", SubmitInput{Description: "wrote the runbook", XPAmount: 0})
	assert.ErrorAs(t, err, &verr)
}

func TestSubmitCreatesPendingAndNotifiesValidators(t *testing.T) {
	svc, notifier := newXPRequestFixture(t)

	req, err := svc.Submit("user-1", SubmitInput{Description: "wrote the runbook", XPAmount: 50})
	require.NoError(t, err)
	assert.Equal(t, models.XPRequestPending, req.Status)

	listed, err := svc.ListForUser("user-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, req.ID, listed[0].ID)

	// Every xp.validate holder gets the new-request notification.
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "admin-1", notifier.events[0].UserID)
	assert.Equal(t, NotifyXPRequestNew, notifier.events[0].Kind)
}

func TestApproveAwardsXP(t *testing.T) {
	svc, notifier := newXPRequestFixture(t)
	req, err := svc.Submit("user-1", SubmitInput{Description: "wrote the runbook", XPAmount: 50})
	require.NoError(t, err)

	resolved, err := svc.Approve("admin-1", req.ID, ResolveInput{AdminNotes: "nice work"})
	require.NoError(t, err)
	assert.Equal(t, models.XPRequestApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "admin-1", *resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	prog, err := svc.Progression.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), prog.TotalXP)
	assert.Contains(t, notifier.kinds(), NotifyXPRequestResult)

	// Resolution is terminal.
	_, err = svc.Approve("admin-1", req.ID, ResolveInput{})
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)
	_, err = svc.Reject("admin-1", req.ID, ResolveInput{})
	assert.ErrorAs(t, err, &conflict)
}

func TestApproveWithAdjustedAmount(t *testing.T) {
	svc, _ := newXPRequestFixture(t)
	req, err := svc.Submit("user-1", SubmitInput{Description: "migration cleanup", XPAmount: 50})
	require.NoError(t, err)

	adjusted := int64(75)
	resolved, err := svc.Approve("admin-1", req.ID, ResolveInput{XPAmount: &adjusted})
	require.NoError(t, err)
	assert.Equal(t, int64(75), resolved.XPAmount)

	prog, err := svc.Progression.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(75), prog.TotalXP)
}

func TestApproveRejectsBadAdjustment(t *testing.T) {
	svc, _ := newXPRequestFixture(t)
	req, err := svc.Submit("user-1", SubmitInput{Description: "migration cleanup", XPAmount: 50})
	require.NoError(t, err)

	bad := int64(-5)
	_, err = svc.Approve("admin-1", req.ID, ResolveInput{XPAmount: &bad})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestApproveRequiresCapability(t *testing.T) {
	svc, _ := newXPRequestFixture(t)
	req, err := svc.Submit("user-1", SubmitInput{Description: "migration cleanup", XPAmount: 50})
	require.NoError(t, err)

	_, err = svc.Approve("user-2", req.ID, ResolveInput{})
	var authz *AuthorizationError
	assert.ErrorAs(t, err, &authz)
	_, err = svc.Reject("user-2", req.ID, ResolveInput{})
	assert.ErrorAs(t, err, &authz)
	err = svc.Delete("user-2", req.ID)
	assert.ErrorAs(t, err, &authz)
}

func TestApproveUnknownRequest(t *testing.T) {
	svc, _ := newXPRequestFixture(t)
	_, err := svc.Approve("admin-1", "no-such-id", ResolveInput{})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRejectLeavesLedgerUntouched(t *testing.T) {
	svc, _ := newXPRequestFixture(t)
	req, err := svc.Submit("user-1", SubmitInput{Description: "migration cleanup", XPAmount: 50})
	require.NoError(t, err)

	resolved, err := svc.Reject("admin-1", req.ID, ResolveInput{AdminNotes: "no evidence"})
	require.NoError(t, err)
	assert.Equal(t, models.XPRequestRejected, resolved.Status)

	prog, err := svc.Progression.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), prog.TotalXP)
}

func TestDeleteNeverReversesAward(t *testing.T) {
	svc, _ := newXPRequestFixture(t)
	req, err := svc.Submit("user-1", SubmitInput{Description: "migration cleanup", XPAmount: 50})
	require.NoError(t, err)
	_, err = svc.Approve("admin-1", req.ID, ResolveInput{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete("admin-1", req.ID))

	var gone models.XPRequest
	err = svc.DB.Where("id = ?", req.ID).First(&gone).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The approved award stays on the ledger.
	prog, err := svc.Progression.GetRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), prog.TotalXP)

	err = svc.Delete("admin-1", req.ID)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRemindStaleOnlyOnce(t *testing.T) {
	svc, notifier := newXPRequestFixture(t)
	req, err := svc.Submit("user-1", SubmitInput{Description: "migration cleanup", XPAmount: 50})
	require.NoError(t, err)
	fresh, err := svc.Submit("user-1", SubmitInput{Description: "incident writeup", XPAmount: 30})
	require.NoError(t, err)

	staleSince := time.Now().Add(-StaleRequestAge - time.Hour)
	require.NoError(t, svc.DB.Model(&models.XPRequest{}).
		Where("id = ?", req.ID).
		Update("created_at", staleSince).Error)

	before := len(notifier.events)
	svc.remindStale()

	var staleKinds []string
	for _, ev := range notifier.events[before:] {
		staleKinds = append(staleKinds, ev.Kind)
	}
	assert.Equal(t, []string{NotifyXPRequestStale}, staleKinds)

	var staleReloaded, freshReloaded models.XPRequest
	require.NoError(t, svc.DB.Where("id = ?", req.ID).First(&staleReloaded).Error)
	assert.NotNil(t, staleReloaded.RemindedAt)
	require.NoError(t, svc.DB.Where("id = ?", fresh.ID).First(&freshReloaded).Error)
	assert.Nil(t, freshReloaded.RemindedAt)

	// A reminded request is never nagged again.
	before = len(notifier.events)
	svc.remindStale()
	assert.Len(t, notifier.events[before:], 0)
}

func TestListByStatus(t *testing.T) {
	svc, _ := newXPRequestFixture(t)
	first, err := svc.Submit("user-1", SubmitInput{Description: "migration cleanup", XPAmount: 50})
	require.NoError(t, err)
	second, err := svc.Submit("user-2", SubmitInput{Description: "incident writeup", XPAmount: 30})
	require.NoError(t, err)
	_, err = svc.Approve("admin-1", first.ID, ResolveInput{})
	require.NoError(t, err)

	pending, err := svc.ListByStatus("admin-1", models.XPRequestPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	_, err = svc.ListByStatus("user-1", models.XPRequestPending)
	var authz *AuthorizationError
	assert.ErrorAs(t, err, &authz)
}
