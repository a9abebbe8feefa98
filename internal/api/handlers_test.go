package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records the last call and returns err.
type fakeService struct {
	err   error
	calls []string
	args  []any
}

func (f *fakeService) record(name string, args ...any) {
	f.calls = append(f.calls, name)
	f.args = args
}

func (f *fakeService) ReassignDealLead(_ context.Context, dealID, requester uint, newLead *uint) (domain.Result, error) {
	f.record("ReassignDealLead", dealID, requester, newLead)
	return domain.Success("Deal lead updated"), f.err
}

func (f *fakeService) AddResourcesToDeal(_ context.Context, dealID, submitter uint, records []domain.ResourceRecord) (domain.Result, error) {
	f.record("AddResourcesToDeal", dealID, submitter, records)
	return domain.Success("added"), f.err
}

func (f *fakeService) AssignTherapeuticAreas(_ context.Context, admin, lead uint, areas []uint) (domain.Result, error) {
	f.record("AssignTherapeuticAreas", admin, lead, areas)
	return domain.Success("assigned"), f.err
}

func (f *fakeService) UnassignTherapeuticArea(_ context.Context, admin, lead, area uint) (domain.Result, error) {
	f.record("UnassignTherapeuticArea", admin, lead, area)
	return domain.Success("unassigned"), f.err
}

func (f *fakeService) CreateDeal(_ context.Context, creator uint, in domain.DealInput) (*domain.Deal, error) {
	f.record("CreateDeal", creator, in)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Deal{ID: 1, Name: in.Name}, nil
}

func (f *fakeService) UpdateDeal(_ context.Context, dealID, modifier uint, in domain.DealPatch) (*domain.Deal, error) {
	f.record("UpdateDeal", dealID, modifier, in)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Deal{ID: dealID}, nil
}

func (f *fakeService) ActiveLead(_ context.Context, dealID uint) (*domain.User, error) {
	f.record("ActiveLead", dealID)
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeService) DealResources(_ context.Context, dealID uint) ([]domain.DealResource, error) {
	f.record("DealResources", dealID)
	return []domain.DealResource{}, f.err
}

func newTestRouter(svc domain.Service, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return SetupRouter(NewHandler(svc, log), gatherer)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReassignDealLeadRoute(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodPut, "/api/v1/deals/7/lead", `{"requesting_user_id": 1, "new_lead_user_id": 3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res domain.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, domain.StatusSuccess, res.Status)

	require.Equal(t, []string{"ReassignDealLead"}, svc.calls)
	assert.Equal(t, uint(7), svc.args[0])
	assert.Equal(t, uint(1), svc.args[1])
	require.NotNil(t, svc.args[2])
	assert.Equal(t, uint(3), *svc.args[2].(*uint))
}

func TestReassignDealLeadRoute_NullUnassigns(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodPut, "/api/v1/deals/7/lead", `{"requesting_user_id": 1, "new_lead_user_id": null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.args[2].(*uint))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   domain.Kind
	}{
		{domain.NotFound("Deal", 7), http.StatusNotFound, domain.KindNotFound},
		{domain.InvalidRole(2, domain.RoleSystemAdmin), http.StatusForbidden, domain.KindInvalidRole},
		{domain.Ineligible("not linked"), http.StatusUnprocessableEntity, domain.KindIneligibleAssignment},
		{domain.Conflict("taken"), http.StatusConflict, domain.KindConflict},
		{domain.ValidationFailed("bad", "field"), http.StatusBadRequest, domain.KindValidationFailed},
		{errors.New("db exploded"), http.StatusInternalServerError, domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			r := newTestRouter(&fakeService{err: tt.err}, nil)
			w := do(t, r, http.MethodPost, "/api/v1/users/4/therapeutic-areas", `{"admin_user_id": 1, "therapeutic_area_ids": [2]}`)
			assert.Equal(t, tt.status, w.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, domain.StatusError, body.Status)
			assert.Equal(t, tt.kind, body.Kind)
			assert.NotContains(t, w.Body.String(), "db exploded")
		})
	}
}

func TestBadRequests(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, nil)

	tests := []struct {
		name, method, path, body string
	}{
		{"non-numeric deal id", http.MethodPut, "/api/v1/deals/abc/lead", `{"requesting_user_id": 1}`},
		{"zero deal id", http.MethodPut, "/api/v1/deals/0/lead", `{"requesting_user_id": 1}`},
		{"missing requester", http.MethodPut, "/api/v1/deals/7/lead", `{}`},
		{"malformed json", http.MethodPost, "/api/v1/deals/7/resources", `{"submitter_id":`},
		{"missing admin query", http.MethodDelete, "/api/v1/users/4/therapeutic-areas/2", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), string(domain.KindValidationFailed))
		})
	}
	assert.Empty(t, svc.calls)
}

func TestUnassignRoute(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodDelete, "/api/v1/users/4/therapeutic-areas/2?admin_user_id=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{uint(1), uint(4), uint(2)}, svc.args)
}

func TestAddResourcesRoute(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, nil)

	body := `{"submitter_id": 2, "records": [{"email": "a@example.com", "line_function": 3, "stages": [1, 2]}]}`
	w := do(t, r, http.MethodPost, "/api/v1/deals/7/resources", body)
	require.Equal(t, http.StatusOK, w.Code)

	records := svc.args[2].([]domain.ResourceRecord)
	require.Len(t, records, 1)
	assert.Equal(t, uint(3), records[0].LineFunctionID)
	assert.Equal(t, []uint{1, 2}, records[0].Stages)
}

func TestDealRoutes(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodPost, "/api/v1/deals", `{"creator_id": 1, "name": "Lotus", "stage_id": 1, "therapeutic_area_id": 2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	in := svc.args[1].(domain.DealInput)
	assert.Equal(t, "Lotus", in.Name)

	w = do(t, r, http.MethodPatch, "/api/v1/deals/5", `{"modifier_id": 1, "name": "Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	patch := svc.args[2].(domain.DealPatch)
	require.NotNil(t, patch.Name)
	assert.Equal(t, "Renamed", *patch.Name)
	assert.Nil(t, patch.StageID)
}

func TestActiveLeadRoute_NoLead(t *testing.T) {
	r := newTestRouter(&fakeService{}, nil)
	w := do(t, r, http.MethodGet, "/api/v1/deals/5/lead", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveOperation("reassign_deal_lead", "committed", "none", 0)

	r := newTestRouter(&fakeService{}, reg)
	w := do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dealflow_engine_operations_total")
}
