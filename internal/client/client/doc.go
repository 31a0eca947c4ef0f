// Package client talks to the legal-assistant backend over HTTP/JSON.
//
// # Overview
//
//  1. APIClient implements the AuthAPI, ChatAPI and DocumentAPI contracts
//     against the REST endpoints under the configured base URL.
//  2. Requests go through an authenticating http.RoundTripper that attaches
//     the bearer token and, on a 401, refreshes the token pair once and
//     resubmits the request once. When no refresh token exists or the refresh
//     fails, the TokenSource is told to expire the session and the call fails
//     with ErrSessionExpired.
//  3. InitDatabase and RunMigrations bootstrap the local SQLite database with
//     the embedded goose migrations.
//
// # Error Handling
//
// Non-2xx responses become *APIError carrying the server message. APIError
// unwraps to ErrUnauthorized, ErrNotFound, ErrBadRequest or ErrUnavailable, so
// callers match with errors.Is. Transport failures wrap ErrUnavailable.
//
// APIClient is safe for concurrent use.
package client
