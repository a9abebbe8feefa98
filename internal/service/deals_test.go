package service

import (
	"testing"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDeal(t *testing.T) {
	f := newFixture(t)
	s := f.leadSetup()

	deal, err := f.svc.CreateDeal(f.ctx, s.admin.ID, domain.DealInput{
		Name:              "  Project Lotus ",
		StageID:           s.stage.ID,
		TherapeuticAreaID: s.area.ID,
		LeadUserID:        &s.lead.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, deal)
	assert.Equal(t, "Project Lotus", deal.Name)
	assert.Equal(t, s.admin.ID, deal.CreatedBy)

	lead, err := f.svc.ActiveLead(f.ctx, deal.ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, s.lead.ID, lead.ID)
}

func TestCreateDeal_WithoutLead(t *testing.T) {
	f := newFixture(t)
	s := f.leadSetup()

	deal, err := f.svc.CreateDeal(f.ctx, s.admin.ID, domain.DealInput{
		Name: "Orphan", StageID: s.stage.ID, TherapeuticAreaID: s.area.ID,
	})
	require.NoError(t, err)
	assert.Empty(t, f.leadRows(deal.ID))
}

func TestCreateDeal_Failures(t *testing.T) {
	f := newFixture(t)
	s := f.leadSetup()
	outsider := f.user(domain.RoleDealLead)

	valid := func() domain.DealInput {
		return domain.DealInput{Name: "New", StageID: s.stage.ID, TherapeuticAreaID: s.area.ID, LeadUserID: &s.lead.ID}
	}

	tests := []struct {
		name    string
		creator uint
		mutate  func(*domain.DealInput)
		kind    domain.Kind
	}{
		{"blank name", s.admin.ID, func(in *domain.DealInput) { in.Name = "  " }, domain.KindValidationFailed},
		{"missing stage id", s.admin.ID, func(in *domain.DealInput) { in.StageID = 0 }, domain.KindValidationFailed},
		{"unknown stage", s.admin.ID, func(in *domain.DealInput) { in.StageID = 9999 }, domain.KindNotFound},
		{"unknown lead", s.admin.ID, func(in *domain.DealInput) { in.LeadUserID = ptr(uint(9999)) }, domain.KindNotFound},
		{"creator not admin", s.lead.ID, func(*domain.DealInput) {}, domain.KindInvalidRole},
		{"lead outside area", s.admin.ID, func(in *domain.DealInput) { in.LeadUserID = &outsider.ID }, domain.KindIneligibleAssignment},
		{"duplicate name", s.admin.ID, func(in *domain.DealInput) { in.Name = s.deal.Name }, domain.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := f.svc.CreateDeal(f.ctx, tt.creator, in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err), err.Error())
			assert.Equal(t, int64(1), f.count(&domain.Deal{}))
		})
	}
}

func TestUpdateDeal(t *testing.T) {
	f := newFixture(t)
	s := f.leadSetup()
	f.leadMapping(s.deal.ID, s.lead.ID, false)
	next := f.stage()

	deal, err := f.svc.UpdateDeal(f.ctx, s.deal.ID, s.lead.ID, domain.DealPatch{
		Name:    ptr("Renamed"),
		StageID: &next.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", deal.Name)
	assert.Equal(t, next.ID, deal.CurrentStageID)
	assert.Equal(t, s.lead.ID, deal.ModifiedBy)

	// Changing the area keeps the current lead.
	other := f.area()
	_, err = f.svc.UpdateDeal(f.ctx, s.deal.ID, s.admin.ID, domain.DealPatch{TherapeuticAreaID: &other.ID})
	require.NoError(t, err)
	lead, err := f.svc.ActiveLead(f.ctx, s.deal.ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, s.lead.ID, lead.ID)
}

func TestUpdateDeal_Failures(t *testing.T) {
	f := newFixture(t)
	s := f.leadSetup()
	taken := f.deal(s.area.ID, s.stage.ID)
	outsider := f.user(domain.RoleDealLead)
	resource := f.user(domain.RoleResource)

	tests := []struct {
		name     string
		modifier uint
		patch    domain.DealPatch
		kind     domain.Kind
	}{
		{"empty patch", s.admin.ID, domain.DealPatch{}, domain.KindValidationFailed},
		{"unknown stage", s.admin.ID, domain.DealPatch{StageID: ptr(uint(9999))}, domain.KindNotFound},
		{"resource modifier", resource.ID, domain.DealPatch{Name: ptr("x")}, domain.KindInvalidRole},
		{"lead of another deal", outsider.ID, domain.DealPatch{Name: ptr("x")}, domain.KindIneligibleAssignment},
		{"name taken", s.admin.ID, domain.DealPatch{Name: &taken.Name}, domain.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateDeal(f.ctx, s.deal.ID, tt.modifier, tt.patch)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err), err.Error())

			var deal domain.Deal
			require.NoError(t, f.db.First(&deal, s.deal.ID).Error)
			assert.Equal(t, s.deal.Name, deal.Name)
		})
	}
}

func TestUpdateDeal_KeepsOwnName(t *testing.T) {
	f := newFixture(t)
	s := f.leadSetup()

	deal, err := f.svc.UpdateDeal(f.ctx, s.deal.ID, s.admin.ID, domain.DealPatch{Name: &s.deal.Name})
	require.NoError(t, err)
	assert.Equal(t, s.deal.ID, deal.ID)
}
