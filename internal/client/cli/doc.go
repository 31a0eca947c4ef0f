// Package cli provides the interactive legal-assistant command-line client.
//
// It is the view layer over the session, conversation, document and
// preference stores: it owns no durable state of its own. Typical flow:
// restore preferences and any stored session, then read commands until
// the user exits.
//
// Key features:
//   - Register / Login / Logout, with a login prompt when the session expires
//   - Ask questions, optionally about an uploaded document
//   - Browse, reopen and delete past conversations
//   - Upload documents for analysis, page, sort and filter the history
//   - Theme and answer-language preferences
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
