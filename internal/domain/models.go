package domain

import "time"

// Имена ролей
const (
	RoleSystemAdmin = "SystemAdmin"
	RoleDealLead    = "DealLead"
	RoleResource    = "Resource"
)

// Role - справочник ролей, движок его не изменяет
type Role struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// Действия, на которые выдаются права
const (
	PermCreateDeal       = "deal.create"
	PermUpdateDeal       = "deal.update"
	PermReassignDealLead = "deal.reassign_lead"
	PermAddResources     = "deal.add_resources"
	PermManageAreas      = "user.manage_therapeutic_areas"
)

// RolePermissions is the seeded grant table. It mirrors the role checks the
// engine performs and is never written after migration.
var RolePermissions = map[string][]string{
	RoleSystemAdmin: {PermCreateDeal, PermUpdateDeal, PermReassignDealLead, PermAddResources, PermManageAreas},
	RoleDealLead:    {PermUpdateDeal, PermAddResources},
	RoleResource:    {},
}

// Permission - право роли на одно действие, справочные данные
type Permission struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	RoleID uint   `json:"role_id" gorm:"not null;uniqueIndex:ux_role_permission"`
	Action string `json:"action" gorm:"not null;uniqueIndex:ux_role_permission"`
}

// User - администратор, лид сделки или ресурс
type User struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email" gorm:"uniqueIndex;not null"`
	ExternalID string    `json:"external_id" gorm:"uniqueIndex;not null"`
	RoleID     uint      `json:"role_id" gorm:"not null;index"`
	Role       *Role     `json:"role,omitempty" gorm:"foreignKey:RoleID"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasRole reports whether the preloaded role matches name.
func (u *User) HasRole(name string) bool {
	return u.Role != nil && u.Role.Name == name
}

type Stage struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

type TherapeuticArea struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

type LineFunction struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// Deal - сделка, проходящая по стадиям; удаляется только мягко
type Deal struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"uniqueIndex;not null"`
	CurrentStageID    uint      `json:"current_stage_id" gorm:"not null"`
	TherapeuticAreaID uint      `json:"therapeutic_area_id" gorm:"not null;index"`
	CreatedBy         uint      `json:"created_by"`
	ModifiedBy        uint      `json:"modified_by"`
	IsDeleted         bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// --- Связующие таблицы ---

// DealLeadMapping links a deal to its lead. At most one active row per deal,
// enforced by a partial unique index created in storage migrations.
type DealLeadMapping struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:ux_deal_lead_pair"`
	DealID    uint      `json:"deal_id" gorm:"not null;uniqueIndex:ux_deal_lead_pair;index"`
	IsDeleted bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResourceDealMapping links a resource to one stage of a deal.
type ResourceDealMapping struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"not null;uniqueIndex:ux_resource_deal_stage"`
	DealID      uint      `json:"deal_id" gorm:"not null;uniqueIndex:ux_resource_deal_stage;index"`
	DealStageID uint      `json:"deal_stage_id" gorm:"not null;uniqueIndex:ux_resource_deal_stage"`
	IsDeleted   bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DealWiseResourceInfo - одна строка на (сделка, ресурс), перезаписывается на месте
type DealWiseResourceInfo struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	DealID             uint      `json:"deal_id" gorm:"not null;uniqueIndex:ux_deal_resource_info"`
	ResourceID         uint      `json:"resource_id" gorm:"not null;uniqueIndex:ux_deal_resource_info"`
	LineFunctionID     uint      `json:"line_function_id" gorm:"not null"`
	VDRAccessRequested bool      `json:"vdr_access_requested" gorm:"not null;default:false"`
	WebTrainingStatus  string    `json:"web_training_status"`
	OneToOneDiscussion *string   `json:"one_to_one_discussion,omitempty"`
	OptionalColumn     *string   `json:"optional_column,omitempty"`
	IsCoreTeamMember   bool      `json:"is_core_team_member" gorm:"not null;default:false"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UserTherapeuticArea links a deal lead to a therapeutic area. Tombstoned
// like the other junctions instead of being physically deleted.
type UserTherapeuticArea struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	UserID            uint      `json:"user_id" gorm:"not null;uniqueIndex:ux_user_ta"`
	TherapeuticAreaID uint      `json:"therapeutic_area_id" gorm:"not null;uniqueIndex:ux_user_ta"`
	IsDeleted         bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AllModels lists every table in migration order.
func AllModels() []any {
	return []any{
		&Role{}, &Permission{}, &User{}, &Stage{}, &TherapeuticArea{}, &LineFunction{}, &Deal{},
		&DealLeadMapping{}, &ResourceDealMapping{}, &DealWiseResourceInfo{}, &UserTherapeuticArea{},
	}
}
