// Package ecs keeps a farm simulation in a [Donburi] world and feeds it to
// a meadow renderer.
//
// Entities carrying [Identity] and [Position] are turned into a
// [meadow.Snapshot] by [Snapshot]; [Growth] and [Motion] are optional.
// Renderer-side happenings travel back into the world as typed events:
// [QualityChangedEvent] through [BridgeQuality] and [ClickedEvent] through
// [PublishClick].
//
//	world := donburi.NewWorld()
//	ecs.BridgeQuality(world, renderer.Quality())
//	...
//	renderer.UpdateScene(ecs.Snapshot(world))
//	events.ProcessAllEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
