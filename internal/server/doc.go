// Package server exposes the transfer backend over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [MuxRouter]
// implements it on gorilla/mux. Middleware wraps the whole router, so CORS preflight
// and panic recovery apply before route matching.
//
// # API
//
// [API] implements [Handler] and serves login checks, login start/completion for
// both providers, source playlist listing, transfer dispatch and transfer status.
// Errors map onto status codes through [StatusFor].
//
// [UsersAPI] serves user CRUD under /users.
//
// # Authentication
//
// When a JWT secret is configured, [JWTMiddleware] requires an HS256 bearer token
// on every route except /health. A token's user id must match the user in the path.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the Spotify redirect for CLI logins. It validates the
// state parameter, completes the login through the session and reports the result
// once on a channel.
package server
