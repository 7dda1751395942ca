// Package events provides the process-local event bus that connects tables,
// forms and search panels with the CRUD coordinator, the permission gate and
// the router.
//
//   - events.go: the closed set of event types; each has exactly one Kind.
//   - bus.go: Bus (On/Off/Emit/Clear), typed Listen helper, LastEvent diagnostics.
//   - recorder.go: Recorder, an in-memory subscriber for tests and tracing.
//
// Emission is synchronous. A handler that panics is logged and skipped so the
// remaining handlers still run and the emitter never observes the failure.
// Buses are constructed explicitly and passed to the components that need them.
package events
