// Package events provides the authentication event vocabulary and an
// in-process broadcast bus.
//
// It provides:
//
//   - EventReason constants for every authentication outcome, with their
//     Normal/Warning classification
//   - MessageTemplateEngine: user-facing messages rendered per reason
//   - Bus: a typed fan-out to any number of subscribers
//
// Bus delivery never blocks the publisher. Each subscriber has a buffered
// channel; when it is full the event is dropped for that subscriber and a
// warning is logged.
//
// Usage:
//
//	bus := events.NewBus[auth.Event]("AuthEvents")
//	ch, cancel := bus.Subscribe(16)
//	defer cancel()
//	bus.Publish(ev)
package events
