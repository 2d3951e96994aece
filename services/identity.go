package services

import (
	"errors"
	"log"

	"task-progression-system/models"

	"gorm.io/gorm"
)

// Capabilities gate the admin-side operations. Roles from the identity
// service map onto capabilities here; services check capabilities only.
const (
	CapabilityValidateXP    = "xp.validate"     // approve/reject/delete XP requests
	CapabilityManageBadges  = "badges.manage"   // manual badge grants and revocations
	CapabilityValidateQuest = "quests.validate" // mentor sign-off on manual quests
	CapabilityGrantXP       = "xp.grant"        // direct admin XP grants
)

// roleCapabilities: admin holds everything; mentors only validate quests.
var roleCapabilities = map[string][]string{
	"admin":  {CapabilityValidateXP, CapabilityManageBadges, CapabilityValidateQuest, CapabilityGrantXP},
	"mentor": {CapabilityValidateQuest},
}

// IdentityProvider is the identity-collaborator boundary. The production
// implementation reads the local member snapshot; tests inject fakes.
type IdentityProvider interface {
	HasCapability(userID, capability string) (bool, error)
	ListWithCapability(capability string) ([]models.MemberUser, error)
}

// MemberIdentityService answers capability questions from the member_users
// snapshot maintained by the sync worker, avoiding a round trip to the
// identity service on every admin call.
type MemberIdentityService struct {
	DB *gorm.DB
}

func NewMemberIdentityService(db *gorm.DB) *MemberIdentityService {
	return &MemberIdentityService{DB: db}
}

func (s *MemberIdentityService) HasCapability(userID, capability string) (bool, error) {
	var member models.MemberUser
	err := s.DB.Where("external_user_id = ?", userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil // unknown member: no capabilities
	}
	if err != nil {
		return false, ioErr("identity lookup", err)
	}
	if !member.IsActive {
		return false, nil
	}
	for _, role := range member.Roles {
		for _, cap := range roleCapabilities[role] {
			if cap == capability {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemberIdentityService) ListWithCapability(capability string) ([]models.MemberUser, error) {
	var roles []string
	for role, caps := range roleCapabilities {
		for _, cap := range caps {
			if cap == capability {
				roles = append(roles, role)
			}
		}
	}

	var members []models.MemberUser
	if err := s.DB.Where("is_active = ?", true).Find(&members).Error; err != nil {
		return nil, ioErr("identity list", err)
	}

	var out []models.MemberUser
	for _, m := range members {
		for _, role := range roles {
			if m.HasRole(role) {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

// requireCapability is the shared guard for admin operations. Authorization
// failures are logged for audit before being surfaced.
func requireCapability(identity IdentityProvider, userID, capability string) error {
	ok, err := identity.HasCapability(userID, capability)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("🚫 [AUTHZ] user=%s denied capability=%s", userID, capability)
		return &AuthorizationError{UserID: userID, Capability: capability}
	}
	return nil
}
