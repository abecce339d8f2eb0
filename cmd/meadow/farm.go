package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/phanxgames/meadow"
	"github.com/phanxgames/meadow/ecs"
	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

const (
	maxStage   = 3
	growEvery  = 1500 * time.Millisecond
	roamEvery  = 2500 * time.Millisecond
	roamRadius = 48.0
)

var (
	crops   = donburi.NewQuery(filter.Contains(ecs.Identity, ecs.Growth))
	animals = donburi.NewQuery(filter.Contains(ecs.Identity, ecs.Motion))
)

// farm is a toy simulation: crops grow, some wither and die, animals roam.
// Clicking a ripe crop harvests it and the plot is replanted later.
type farm struct {
	world  donburi.World
	rng    *rand.Rand
	log    logrus.FieldLogger
	bounds meadow.Rect

	sinceGrow time.Duration
	sinceRoam time.Duration
	nextID    int
	empty     []meadow.Vec2
}

func newFarm(bounds meadow.Rect, plots, herd int, seed uint64, logger logrus.FieldLogger) *farm {
	f := &farm{
		world:  donburi.NewWorld(),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log:    logger.WithField("component", "farm"),
		bounds: bounds,
	}
	cx, cy := bounds.X+bounds.Width/2, bounds.Y+bounds.Height/2
	side := 1
	for side*side < plots {
		side++
	}
	const spacing = 24.0
	origin := meadow.Vec2{X: cx - float64(side)*spacing/2, Y: cy - float64(side)*spacing/2}
	for i := range plots {
		f.plant(origin.X+float64(i%side)*spacing, origin.Y+float64(i/side)*spacing)
	}
	for range herd {
		f.spawnAnimal(cx+f.rng.Float64()*200-100, cy+f.rng.Float64()*200-100)
	}

	ecs.ClickedEvent.Subscribe(f.world, f.onClick)
	ecs.QualityChangedEvent.Subscribe(f.world, func(_ donburi.World, c meadow.QualityChange) {
		f.log.WithFields(logrus.Fields{"from": c.From.String(), "to": c.To.String()}).Info("quality changed")
	})
	return f
}

func (f *farm) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *farm) plant(x, y float64) {
	e := f.world.Entry(f.world.Create(ecs.Identity, ecs.Position, ecs.Growth))
	ecs.Identity.SetValue(e, ecs.IdentityData{ID: f.id("crop"), SpriteKey: cropKey(0)})
	ecs.Position.SetValue(e, ecs.PositionData{X: x, Y: y})
}

func (f *farm) spawnAnimal(x, y float64) {
	e := f.world.Entry(f.world.Create(ecs.Identity, ecs.Position, ecs.Motion))
	ecs.Identity.SetValue(e, ecs.IdentityData{ID: f.id("cow"), SpriteKey: "cow"})
	ecs.Position.SetValue(e, ecs.PositionData{X: x, Y: y})
}

func cropKey(stage int) string {
	return fmt.Sprintf("wheat-%d", stage)
}

// update advances the simulation by dt and dispatches queued events.
func (f *farm) update(dt time.Duration) {
	f.sinceGrow += dt
	f.sinceRoam += dt
	if f.sinceGrow >= growEvery {
		f.sinceGrow = 0
		f.grow()
	}
	if f.sinceRoam >= roamEvery {
		f.sinceRoam = 0
		f.roam()
	}
	events.ProcessAllEvents(f.world)
}

func (f *farm) grow() {
	var dead []donburi.Entity
	crops.Each(f.world, func(e *donburi.Entry) {
		g := ecs.Growth.Get(e)
		switch {
		case g.Health == meadow.HealthDead:
			dead = append(dead, e.Entity())
		case g.Health >= meadow.HealthStressed && f.rng.IntN(3) == 0:
			g.Health++
		case f.rng.IntN(12) == 0:
			g.Health = meadow.HealthStressed
		case g.Stage < maxStage && f.rng.IntN(3) == 0:
			g.Stage++
			ecs.Identity.Get(e).SpriteKey = cropKey(g.Stage)
		}
	})
	for _, ent := range dead {
		pos := *ecs.Position.Get(f.world.Entry(ent))
		f.world.Remove(ent)
		f.empty = append(f.empty, meadow.Vec2{X: pos.X, Y: pos.Y})
	}
	if len(f.empty) > 0 && f.rng.IntN(2) == 0 {
		p := f.empty[0]
		f.empty = f.empty[1:]
		f.plant(p.X, p.Y)
	}
}

func (f *farm) roam() {
	animals.Each(f.world, func(e *donburi.Entry) {
		m := ecs.Motion.Get(e)
		if f.rng.IntN(2) == 0 {
			m.Moving = false
			return
		}
		p := ecs.Position.Get(e)
		p.X = clampTo(p.X+(f.rng.Float64()*2-1)*roamRadius, f.bounds.X, f.bounds.X+f.bounds.Width)
		p.Y = clampTo(p.Y+(f.rng.Float64()*2-1)*roamRadius, f.bounds.Y, f.bounds.Y+f.bounds.Height)
		m.Moving = true
	})
}

func (f *farm) onClick(w donburi.World, c ecs.Click) {
	e, ok := ecs.Find(w, c.ID)
	if !ok || !e.HasComponent(ecs.Growth) {
		f.log.WithField("id", c.ID).Info("clicked")
		return
	}
	g := ecs.Growth.Get(e)
	if g.Stage < maxStage || g.Health >= meadow.HealthWithering {
		f.log.WithFields(logrus.Fields{"id": c.ID, "stage": g.Stage, "health": g.Health.String()}).Info("not ready to harvest")
		return
	}
	pos := *ecs.Position.Get(e)
	w.Remove(e.Entity())
	f.empty = append(f.empty, meadow.Vec2{X: pos.X, Y: pos.Y})
	f.log.WithField("id", c.ID).Info("harvested")
}

func (f *farm) snapshot() meadow.Snapshot {
	return ecs.Snapshot(f.world)
}

func clampTo(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
