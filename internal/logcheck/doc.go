// Package logcheck inspects build and run logs of the application under
// test.
//
// Verifier fails a log that lacks a required marker or contains a forbidden
// one (exceptions, stack frames, ERROR lines) outside the whitelist.
// Extractor pulls the self-reported start and stop durations out of a run
// log; its patterns are injectable so the harness is not tied to one
// framework's log vocabulary.
package logcheck
