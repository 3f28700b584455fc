// Package sink provides the concrete delivery collaborators the relay
// binds turns to: a terminal printer, a websocket broadcast hub, a
// log-backed typing signaler and a no-op canceler.
package sink
