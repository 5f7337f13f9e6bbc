// Package component defines the contract every rai-memory component shares.
//
// A component reports its name, initializes, processes an opaque value and
// reports a status record:
//
//	Initialize(ctx) (bool, error)        always (true, nil), no side effects
//	Process(ctx, data) (any, error)      identity
//	Status() Status                      {"status": "initialized", "component": Name()}
//
// Status is a fixed record; it does not reflect whether Initialize ran. Real
// state is reported by Health, and components that own resources (drivers,
// clients, listeners) additionally implement Lifecycle.
//
// Registry groups components, initializes and starts them in registration
// order and stops started ones in reverse order.
package component
