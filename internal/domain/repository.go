package domain

import "context"

// JobStore is the durable mirror of the in-memory job table. Writes are
// idempotent upserts keyed by job id and (job id, index). The registry keeps
// running on store errors; in-memory state stays authoritative until the
// store recovers.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	SaveJobItem(ctx context.Context, item *JobItem) error
	LoadJob(ctx context.Context, jobID string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter, skip, take int) ([]*Job, int, error)
}

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateRole(ctx context.Context, id string, role UserRole) error
}

// WorldRepository persists the content hierarchy. The four levels share the
// same CRUD shape, so the repository exposes them level by level rather than
// through a generic interface.
type WorldRepository interface {
	CreateWorld(ctx context.Context, w *World) error
	GetWorld(ctx context.Context, id string) (*World, error)
	UpdateWorld(ctx context.Context, w *World) error
	DeleteWorld(ctx context.Context, id string) error
	ListWorlds(ctx context.Context, filter ContentFilter, skip, take int) ([]World, int, error)
	TransferWorld(ctx context.Context, id, newOwnerID string) error

	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	UpdateCampaign(ctx context.Context, c *Campaign) error
	DeleteCampaign(ctx context.Context, id string) error
	ListCampaigns(ctx context.Context, filter ContentFilter, skip, take int) ([]Campaign, int, error)

	CreateAdventure(ctx context.Context, a *Adventure) error
	GetAdventure(ctx context.Context, id string) (*Adventure, error)
	UpdateAdventure(ctx context.Context, a *Adventure) error
	DeleteAdventure(ctx context.Context, id string) error
	ListAdventures(ctx context.Context, filter ContentFilter, skip, take int) ([]Adventure, int, error)

	CreateEncounter(ctx context.Context, e *Encounter) error
	GetEncounter(ctx context.Context, id string) (*Encounter, error)
	UpdateEncounter(ctx context.Context, e *Encounter) error
	DeleteEncounter(ctx context.Context, id string) error
	ListEncounters(ctx context.Context, filter ContentFilter, skip, take int) ([]Encounter, int, error)
}

// AssetRepository handles persistence for content assets.
type AssetRepository interface {
	Create(ctx context.Context, a *Asset) error
	GetByID(ctx context.Context, id string) (*Asset, error)
	GetByIDs(ctx context.Context, ids []string) ([]Asset, error)
	Update(ctx context.Context, a *Asset) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ContentFilter, skip, take int) ([]Asset, int, error)
	SetPortraitURL(ctx context.Context, id, url string) error
}
