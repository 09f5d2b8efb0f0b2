// Package auth decides whether a stored access token is usable and drives the
// per-service login flows that populate the token store.
//
// [Validator] implements the validity check: a cached token is returned while its
// expiry lies in the future; otherwise a single refresh is attempted through a
// [RefreshFunc]. A [Session] binds a validator, a token store and an OAuth provider
// for one service prefix and supplies the refresh callback.
package auth
