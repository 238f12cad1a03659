// Package visa binds the instrument object model to a message-based
// hardware session (VISA in spirit: SCPI over TCP, GPIB gateways, serial
// bridges).
//
// The package owns two seams:
//
//   - Session: the narrow collaborator contract the core depends on —
//     Write, Ask, Close. Any transport that can move command strings
//     satisfies it; the wire-level protocol lives behind it.
//   - Instrument: an instrument.Base bound to exactly one Session and a
//     command terminator. Every outgoing command gets the terminator
//     appended; every failure is surfaced as an ErrCommunication wrapping
//     the instrument name and the failing command.
//
// Communication is strictly synchronous request/response. Nothing is
// retried here: many instrument commands are not idempotent, so retries
// belong to the caller. No timeout or cancellation is layered on beyond
// what the Session's transport provides.
//
// # Usage
//
//	session, err := visa.Dial("192.168.1.5:5555", 5*time.Second)
//	if err != nil { ... }
//	inst, err := visa.New("psu", session, visa.Options{
//	    Label:      "Bench PSU",
//	    Terminator: "\n",
//	})
package visa
