package ecs

import (
	"cmp"
	"slices"

	"github.com/phanxgames/meadow"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// IdentityData names an entity and the texture it is drawn with.
type IdentityData struct {
	ID        string
	SpriteKey string
}

// PositionData is the bottom centre of the sprite in world units.
type PositionData struct {
	X, Y float64
}

// GrowthData is the growth stage and health band of a crop.
type GrowthData struct {
	Stage  int
	Health meadow.HealthBand
}

// MotionData marks an entity as walking between positions.
type MotionData struct {
	Moving bool
}

var (
	Identity = donburi.NewComponentType[IdentityData]()
	Position = donburi.NewComponentType[PositionData]()
	Growth   = donburi.NewComponentType[GrowthData]()
	Motion   = donburi.NewComponentType[MotionData]()
)

var renderable = donburi.NewQuery(filter.Contains(Identity, Position))

// Snapshot collects every renderable entity of world, ordered by id.
// Entries with an empty id are skipped.
func Snapshot(world donburi.World) meadow.Snapshot {
	var s meadow.Snapshot
	renderable.Each(world, func(e *donburi.Entry) {
		id := Identity.Get(e)
		if id.ID == "" {
			return
		}
		pos := Position.Get(e)
		ent := meadow.Entity{ID: id.ID, SpriteKey: id.SpriteKey, X: pos.X, Y: pos.Y}
		if e.HasComponent(Growth) {
			g := Growth.Get(e)
			ent.State.Stage = g.Stage
			ent.State.Health = g.Health
		}
		if e.HasComponent(Motion) {
			ent.State.Moving = Motion.Get(e).Moving
		}
		s.Entities = append(s.Entities, ent)
	})
	slices.SortFunc(s.Entities, func(a, b meadow.Entity) int { return cmp.Compare(a.ID, b.ID) })
	return s
}

// Find returns the entry whose Identity carries id.
func Find(world donburi.World, id string) (*donburi.Entry, bool) {
	var found *donburi.Entry
	renderable.Each(world, func(e *donburi.Entry) {
		if found == nil && Identity.Get(e).ID == id {
			found = e
		}
	})
	return found, found != nil
}

// QualityChangedEvent carries renderer quality changes into the world.
var QualityChangedEvent = events.NewEventType[meadow.QualityChange]()

// ClickedEvent carries the id of a clicked entity.
var ClickedEvent = events.NewEventType[Click]()

// Click is published when the player clicks an entity.
type Click struct {
	ID string
}

// BridgeQuality publishes every tier change of q as a QualityChangedEvent.
// Events are queued until the world processes them.
func BridgeQuality(world donburi.World, q *meadow.AdaptiveQuality) {
	q.Subscribe(func(c meadow.QualityChange) {
		QualityChangedEvent.Publish(world, c)
	})
}

// PublishClick returns a click handler for meadow.Input.OnClick that
// queues a ClickedEvent.
func PublishClick(world donburi.World) func(id string) {
	return func(id string) {
		ClickedEvent.Publish(world, Click{ID: id})
	}
}
