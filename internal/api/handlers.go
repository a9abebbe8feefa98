package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/gin-gonic/gin"
)

// Handler содержит ссылку на движок, через который маршруты вызывают бизнес-логику
type Handler struct {
	service domain.Service
	log     *slog.Logger
}

func NewHandler(s domain.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{service: s, log: log}
}

// --- Deal leads ---

type reassignLeadRequest struct {
	RequestingUserID uint  `json:"requesting_user_id" binding:"required"`
	NewLeadUserID    *uint `json:"new_lead_user_id"`
}

func (h *Handler) ReassignDealLead(c *gin.Context) {
	dealID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req reassignLeadRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.service.ReassignDealLead(c.Request.Context(), dealID, req.RequestingUserID, req.NewLeadUserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetActiveLead(c *gin.Context) {
	dealID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	lead, err := h.service.ActiveLead(c.Request.Context(), dealID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if lead == nil {
		h.writeError(c, domain.NotFound("active lead of deal", dealID))
		return
	}
	c.JSON(http.StatusOK, lead)
}

// --- Resources ---

type addResourcesRequest struct {
	SubmitterID uint                    `json:"submitter_id" binding:"required"`
	Records     []domain.ResourceRecord `json:"records"`
}

func (h *Handler) AddResources(c *gin.Context) {
	dealID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req addResourcesRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.service.AddResourcesToDeal(c.Request.Context(), dealID, req.SubmitterID, req.Records)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListResources(c *gin.Context) {
	dealID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resources, err := h.service.DealResources(c.Request.Context(), dealID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

// --- Therapeutic areas ---

type assignAreasRequest struct {
	AdminUserID uint   `json:"admin_user_id" binding:"required"`
	AreaIDs     []uint `json:"therapeutic_area_ids"`
}

func (h *Handler) AssignTherapeuticAreas(c *gin.Context) {
	userID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req assignAreasRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.service.AssignTherapeuticAreas(c.Request.Context(), req.AdminUserID, userID, req.AreaIDs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UnassignTherapeuticArea(c *gin.Context) {
	userID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	areaID, ok := h.pathID(c, "taId")
	if !ok {
		return
	}
	adminID, err := strconv.ParseUint(c.Query("admin_user_id"), 10, 64)
	if err != nil {
		h.writeError(c, domain.ValidationFailed("admin_user_id query parameter is required", err.Error()))
		return
	}

	res, err := h.service.UnassignTherapeuticArea(c.Request.Context(), uint(adminID), userID, areaID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Deals ---

type createDealRequest struct {
	CreatorID uint `json:"creator_id" binding:"required"`
	domain.DealInput
}

func (h *Handler) CreateDeal(c *gin.Context) {
	var req createDealRequest
	if !h.bind(c, &req) {
		return
	}

	deal, err := h.service.CreateDeal(c.Request.Context(), req.CreatorID, req.DealInput)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deal)
}

type updateDealRequest struct {
	ModifierID uint `json:"modifier_id" binding:"required"`
	domain.DealPatch
}

func (h *Handler) UpdateDeal(c *gin.Context) {
	dealID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req updateDealRequest
	if !h.bind(c, &req) {
		return
	}

	deal, err := h.service.UpdateDeal(c.Request.Context(), dealID, req.ModifierID, req.DealPatch)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

// --- Helpers ---

func (h *Handler) pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.writeError(c, domain.ValidationFailed("invalid "+name, c.Param(name)))
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.writeError(c, domain.ValidationFailed("invalid request format", err.Error()))
		return false
	}
	return true
}

type errorResponse struct {
	Status  string      `json:"status"`
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidRole:
		return http.StatusForbidden
	case domain.KindIneligibleAssignment:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	derr := domain.AsError(err)
	if derr.Kind == domain.KindInternal {
		h.log.Error("service error", "path", c.FullPath(), "error", err)
	} else {
		h.log.Debug("request rejected", "path", c.FullPath(), "kind", derr.Kind, "error", err)
	}
	h.writeError(c, derr)
}

func (h *Handler) writeError(c *gin.Context, derr *domain.Error) {
	resp := errorResponse{
		Status:  domain.StatusError,
		Kind:    derr.Kind,
		Message: derr.Message,
		Detail:  derr.Detail,
	}
	// Детали внутренних ошибок остаются только в логах
	if derr.Kind == domain.KindInternal {
		resp.Message = "internal server error"
		resp.Detail = ""
	}
	c.JSON(statusFor(derr.Kind), resp)
}
