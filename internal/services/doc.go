// Package services implements the provider capabilities consumed by the transfer core.
//
// # Capabilities
//
//   - [OAuthProvider] : refresh a token
//   - [AuthCodeProvider] : authorization-code login (Spotify)
//   - [DeviceCodeProvider] : device-code login with single-shot polling (YouTube Music)
//   - [SourceCatalog] : list playlists and their tracks
//   - [DestinationCatalog] : create playlists, search, add items
//
// # Spotify Implementation
//
// [SpotifyService] uses [oauth2] for the code exchange and refresh. Catalog calls take the
// caller's access token and follow the `next` cursor (50 playlists or 100 tracks per page).
//
// # YouTube Music Implementation
//
// [YouTubeService] talks to Google's device-code endpoints for login and to the FastAPI
// proxy wrapping ytmusicapi for catalog operations. Proxy calls are throttled with a
// [rate.Limiter] when a request rate is configured.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrAPIRequest] : non-2xx or transport failure (an [shared.ErrUpstream])
//   - [shared.ErrNotAuthenticated] : the provider rejected the token (401)
//   - [shared.ErrAuthFailed] : code exchange failed
//   - [shared.ErrRefreshFailed] : refresh grant failed
//   - [shared.ErrMissingCredentials] : client credentials absent
package services
