package domain

import "context"

// Conds is an equality filter keyed by column name.
type Conds map[string]any

// Repository is the generic CRUD surface over one entity table. Lookups that
// miss return a NotFound *Error naming the entity.
type Repository[T any] interface {
	Get(ctx context.Context, id uint) (*T, error)
	First(ctx context.Context, conds Conds) (*T, error)
	// FirstWhere returns the lowest-id row matching a raw SQL predicate.
	FirstWhere(ctx context.Context, query string, args ...any) (*T, error)
	List(ctx context.Context, conds Conds) ([]T, error)
	Exists(ctx context.Context, query string, args ...any) (bool, error)
	Create(ctx context.Context, entity *T) error
	Save(ctx context.Context, entity *T) error
	Update(ctx context.Context, id uint, fields map[string]any) error
}

// Tx is one open store transaction. Every read and write of a reconciliation
// goes through the repositories it hands out.
type Tx interface {
	Roles() Repository[Role]
	Users() Repository[User]
	Deals() Repository[Deal]
	Stages() Repository[Stage]
	TherapeuticAreas() Repository[TherapeuticArea]
	LineFunctions() Repository[LineFunction]
	LeadMappings() Repository[DealLeadMapping]
	ResourceMappings() Repository[ResourceDealMapping]
	ResourceInfo() Repository[DealWiseResourceInfo]
	UserAreas() Repository[UserTherapeuticArea]

	// LockDeal takes a row lock on the deal for the rest of the transaction.
	LockDeal(ctx context.Context, dealID uint) error
	Commit() error
	Rollback() error
}

// Store opens transactions against the entity store.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Service is the engine surface called from the HTTP handlers.
type Service interface {
	ReassignDealLead(ctx context.Context, dealID, requestingUserID uint, newLeadUserID *uint) (Result, error)
	AddResourcesToDeal(ctx context.Context, dealID, submitterID uint, records []ResourceRecord) (Result, error)
	AssignTherapeuticAreas(ctx context.Context, adminUserID, dealLeadID uint, areaIDs []uint) (Result, error)
	UnassignTherapeuticArea(ctx context.Context, adminUserID, dealLeadID, areaID uint) (Result, error)

	CreateDeal(ctx context.Context, creatorID uint, in DealInput) (*Deal, error)
	UpdateDeal(ctx context.Context, dealID, modifierID uint, in DealPatch) (*Deal, error)

	ActiveLead(ctx context.Context, dealID uint) (*User, error)
	DealResources(ctx context.Context, dealID uint) ([]DealResource, error)
}
