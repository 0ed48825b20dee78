// Package transport owns the physical byte stream to the dial hub.
//
// It provides the Transport interface (open/close a port, raw write, raw
// timed byte read) with a serial implementation on top of go.bug.st/serial,
// plus host port enumeration. Transports carry no protocol knowledge: they
// never retry and never interpret content. While open, a serial transport
// holds exclusive OS-level ownership of the port.
package transport
