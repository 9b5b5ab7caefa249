package model

import "time"

// EntityType identifies the kind of business object a transaction links to.
type EntityType string

// Entity types known to the matcher.
const (
	EntityParticipant EntityType = "participant"
	EntityExpense     EntityType = "expense"
	EntityEvent       EntityType = "event"
	EntityMember      EntityType = "member"
	EntityDemand      EntityType = "demand"
	EntityInscription EntityType = "inscription"
)

// MatchSource records whether a link was produced automatically or by hand.
type MatchSource string

// Match sources.
const (
	MatchAuto   MatchSource = "auto"
	MatchManual MatchSource = "manual"
)

// MatchedEntity is a confidence-scored link from a transaction to a business
// entity. Manual links are never downgraded by a later automatic pass.
type MatchedEntity struct {
	MatchedAt  time.Time
	EntityType EntityType
	EntityID   string
	Name       string
	Notes      string
	MatchedBy  MatchSource
	Confidence int // 0-100
}

// Key returns the deduplication key for merge operations.
func (m MatchedEntity) Key() string {
	return string(m.EntityType) + "\x00" + m.EntityID
}
