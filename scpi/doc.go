// Package scpi implements the SCPI command and reply model shared by all
// transports.
//
// It provides the immutable Command type with its wire rendering rules, the
// reply parsers that convert raw reply text into typed values (floats,
// booleans, device identities, error-queue entries), and the mnemonics of the
// command surface bench power supplies expose.
//
// Framing and I/O are out of scope here; see the psu package for the command
// engine and the transport package for the byte channels.
package scpi
