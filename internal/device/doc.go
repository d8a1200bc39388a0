// Package device defines the radio capability the bridge is built on: advertisements,
// the Adapter interface, and the connection error taxonomy shared by adapter
// implementations.
//
// Concrete radios live in subpackages (go-ble). LockedAdapter lets callers put any
// Adapter behind a sharedlock.Lock when the radio is shared with code outside the
// bridge.
package device
