package domain

// Result statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the success payload of an engine operation.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Success(message string) Result {
	return Result{Status: StatusSuccess, Message: message}
}

// ResourceRecord is one row of an addResourcesToDeal batch.
type ResourceRecord struct {
	Email              string  `json:"email" validate:"required,email,max=254"`
	FirstName          string  `json:"first_name" validate:"max=100"`
	LastName           string  `json:"last_name" validate:"max=100"`
	LineFunctionID     uint    `json:"line_function" validate:"required"`
	Stages             []uint  `json:"stages" validate:"min=1,dive,required"`
	VDRAccessRequested bool    `json:"vdr_access_requested"`
	WebTrainingStatus  string  `json:"web_training_status" validate:"max=50"`
	OneToOneDiscussion *string `json:"one_to_one_discussion,omitempty"`
	OptionalColumn     *string `json:"optional_column,omitempty"`
	IsCoreTeamMember   bool    `json:"is_core_team_member"`
}

// DealInput creates a deal.
type DealInput struct {
	Name              string `json:"name" validate:"required,max=200"`
	StageID           uint   `json:"stage_id" validate:"required"`
	TherapeuticAreaID uint   `json:"therapeutic_area_id" validate:"required"`
	LeadUserID        *uint  `json:"lead_user_id,omitempty"`
}

// DealPatch updates a deal; nil fields are left unchanged.
type DealPatch struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	StageID           *uint   `json:"stage_id,omitempty" validate:"omitempty,min=1"`
	TherapeuticAreaID *uint   `json:"therapeutic_area_id,omitempty" validate:"omitempty,min=1"`
}

// DealResource is a resource staffed on a deal with its active stages.
type DealResource struct {
	User   User                  `json:"user"`
	Info   *DealWiseResourceInfo `json:"info,omitempty"`
	Stages []uint                `json:"stages"`
}
