package domain

import "time"

// ContentKind identifies a level of the content hierarchy. Assets attach to
// any level via (ParentKind, ParentID).
type ContentKind string

const (
	ContentKindWorld     ContentKind = "world"
	ContentKindCampaign  ContentKind = "campaign"
	ContentKindAdventure ContentKind = "adventure"
	ContentKindEncounter ContentKind = "encounter"
)

// World is the root of the content hierarchy.
type World struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Campaign belongs to a world.
type Campaign struct {
	ID          string
	WorldID     string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Adventure belongs to a campaign.
type Adventure struct {
	ID          string
	CampaignID  string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Encounter belongs to an adventure.
type Encounter struct {
	ID          string
	AdventureID string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssetKind enumerates asset categories.
type AssetKind string

const (
	AssetKindCharacter AssetKind = "character"
	AssetKindMonster   AssetKind = "monster"
	AssetKindNPC       AssetKind = "npc"
	AssetKindItem      AssetKind = "item"
)

// Asset is a piece of game content (a monster, an NPC, an item) that can
// carry a generated portrait.
type Asset struct {
	ID          string
	ParentKind  ContentKind
	ParentID    string
	OwnerID     string
	Kind        AssetKind
	Name        string
	Description string
	PortraitURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentFilter narrows content listings. Zero values match everything.
type ContentFilter struct {
	ParentID string
	OwnerID  string
	Search   string
}
