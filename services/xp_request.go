package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"task-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// XPRequestService is the human-in-the-loop approval queue for XP that cannot
// be auto-awarded. pending → approved | rejected, both terminal.
type XPRequestService struct {
	DB          *gorm.DB
	Progression *ProgressionService
	Identity    IdentityProvider
	Notifier    Notifier
}

func NewXPRequestService(db *gorm.DB, progression *ProgressionService, identity IdentityProvider, notifier Notifier) *XPRequestService {
	return &XPRequestService{DB: db, Progression: progression, Identity: identity, Notifier: notifier}
}

// SubmitInput carries a user's claim. EvidenceURL is filled by the handler
// after uploading the attached file, if any.
type SubmitInput struct {
	TaskID      *string
	Description string
	XPAmount    int64
	EvidenceURL string
}

// Submit creates a pending request and fans out a notification to every
// principal holding the validation capability.
func (s *XPRequestService) Submit(externalUserID string, input SubmitInput) (*models.XPRequest, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, validationf("description must not be empty")
	}
	if input.XPAmount <= 0 {
		return nil, validationf("xp amount must be positive, got %d", input.XPAmount)
	}
	if _, err := s.Progression.EnsureRecord(externalUserID); err != nil {
		return nil, err
	}

	req := models.XPRequest{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		TaskID:         input.TaskID,
		Description:    input.Description,
		XPAmount:       input.XPAmount,
		EvidenceURL:    input.EvidenceURL,
		Status:         models.XPRequestPending,
	}
	if err := s.DB.Create(&req).Error; err != nil {
		return nil, ioErr("create xp request", err)
	}

	// Fan-out is best-effort and independent of the mutation's success.
	validators, err := s.Identity.ListWithCapability(CapabilityValidateXP)
	if err != nil {
		log.Printf("⚠️ validator fan-out skipped for request %s: %v", req.ID, err)
	}
	for _, v := range validators {
		s.Notifier.Notify(v.ExternalUserID, NotifyXPRequestNew, map[string]interface{}{
			"request_id": req.ID,
			"user_id":    externalUserID,
			"xp_amount":  req.XPAmount,
		})
	}
	log.Printf("📨 XP request submitted: %s by %s (%d XP, %d validators notified)",
		req.ID, externalUserID, req.XPAmount, len(validators))
	return &req, nil
}

// ResolveInput holds admin-side resolution fields. A nil XPAmount keeps the
// requested amount; approval applies the (possibly adjusted) amount.
type ResolveInput struct {
	XPAmount   *int64
	AdminNotes string
}

// Approve resolves a pending request and awards its XP through the ledger in
// the same transaction. A request is only ever resolved once.
func (s *XPRequestService) Approve(adminID, requestID string, input ResolveInput) (*models.XPRequest, error) {
	if err := requireCapability(s.Identity, adminID, CapabilityValidateXP); err != nil {
		return nil, err
	}
	if input.XPAmount != nil && *input.XPAmount <= 0 {
		return nil, validationf("adjusted xp amount must be positive, got %d", *input.XPAmount)
	}

	var req *models.XPRequest
	var award *AwardResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := s.lockPending(tx, requestID)
		if err != nil {
			return err
		}
		if input.XPAmount != nil {
			r.XPAmount = *input.XPAmount
		}
		now := time.Now()
		r.Status = models.XPRequestApproved
		r.ResolvedBy = &adminID
		r.ResolvedAt = &now
		r.AdminNotes = input.AdminNotes
		if err := tx.Save(r).Error; err != nil {
			return ioErr("save xp request", err)
		}
		award, err = s.Progression.AwardXPTx(tx, r.ExternalUserID, r.XPAmount, "xp_request:"+r.ID)
		if err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(req.ExternalUserID, NotifyXPRequestResult, map[string]interface{}{
		"request_id": req.ID,
		"status":     req.Status,
		"xp_amount":  req.XPAmount,
	})
	s.Progression.notifyAward(req.ExternalUserID, award)
	log.Printf("👍 XP request approved: %s (+%d XP for %s, by %s)", req.ID, req.XPAmount, req.ExternalUserID, adminID)
	return req, nil
}

// Reject resolves a pending request without touching the ledger.
func (s *XPRequestService) Reject(adminID, requestID string, input ResolveInput) (*models.XPRequest, error) {
	if err := requireCapability(s.Identity, adminID, CapabilityValidateXP); err != nil {
		return nil, err
	}

	var req *models.XPRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := s.lockPending(tx, requestID)
		if err != nil {
			return err
		}
		now := time.Now()
		r.Status = models.XPRequestRejected
		r.ResolvedBy = &adminID
		r.ResolvedAt = &now
		r.AdminNotes = input.AdminNotes
		if err := tx.Save(r).Error; err != nil {
			return ioErr("save xp request", err)
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(req.ExternalUserID, NotifyXPRequestResult, map[string]interface{}{
		"request_id": req.ID,
		"status":     req.Status,
	})
	log.Printf("👎 XP request rejected: %s (by %s)", req.ID, adminID)
	return req, nil
}

// Delete removes a request regardless of status (administrative cleanup). An
// approved request's XP award is deliberately not reversed.
func (s *XPRequestService) Delete(adminID, requestID string) error {
	if err := requireCapability(s.Identity, adminID, CapabilityValidateXP); err != nil {
		return err
	}
	var req models.XPRequest
	err := s.DB.Where("id = ?", requestID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: "xp request", ID: requestID}
	}
	if err != nil {
		return ioErr("load xp request", err)
	}
	if err := s.DB.Delete(&req).Error; err != nil {
		return ioErr("delete xp request", err)
	}
	log.Printf("🗑️ XP request deleted: %s (was %s, by %s)", requestID, req.Status, adminID)
	return nil
}

// ListForUser returns the caller's own requests, newest first.
func (s *XPRequestService) ListForUser(externalUserID string) ([]models.XPRequest, error) {
	var reqs []models.XPRequest
	if err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, ioErr("list xp requests", err)
	}
	return reqs, nil
}

// ListByStatus is the admin queue view.
func (s *XPRequestService) ListByStatus(adminID string, status models.XPRequestStatus) ([]models.XPRequest, error) {
	if err := requireCapability(s.Identity, adminID, CapabilityValidateXP); err != nil {
		return nil, err
	}
	query := s.DB.Order("created_at ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var reqs []models.XPRequest
	if err := query.Find(&reqs).Error; err != nil {
		return nil, ioErr("list xp requests", err)
	}
	return reqs, nil
}

// lockPending loads a request under FOR UPDATE and enforces the terminal-state
// guard: once resolved, a request is immutable.
func (s *XPRequestService) lockPending(tx *gorm.DB, requestID string) (*models.XPRequest, error) {
	var req models.XPRequest
	err := forUpdate(tx).
		Where("id = ?", requestID).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "xp request", ID: requestID}
	}
	if err != nil {
		return nil, ioErr("lock xp request", err)
	}
	if req.Status != models.XPRequestPending {
		return nil, conflictf("xp request %s is already %s", requestID, req.Status)
	}
	return &req, nil
}
