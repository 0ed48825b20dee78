// Package hub implements the engine driving a multi-device analog-dial hub
// over its serial wire protocol.
//
// The pieces, leaf-first: Locator probes candidate serial ports for the hub;
// Exchanger serializes every command/response exchange over the open port
// (the bus is half-duplex, so one exchange is in flight at a time);
// the discovery state machine enumerates the bus and publishes the device
// set into Registry as an atomic snapshot; Hub ties them together behind the
// collaborator-facing API consumed by GUI, console, and monitoring layers.
//
// Devices are addressed by their stable firmware-assigned identifier.
// The transient bus index is resolved from the current registry snapshot
// immediately before each transaction, because a rescan can renumber the
// bus at any time.
package hub
