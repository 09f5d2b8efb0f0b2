// Package models defines domain entities and persistence interfaces for the playlist transfer service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): values exchanged with music services and the message bus
//   - [Playlist] : Source playlist metadata
//   - [TrackDescriptor] : Track name, artists and duration captured during source enumeration
//   - [TransferJob] : The job message handed from dispatch to execution
//   - [TokenInfo] : Token bundle returned by an OAuth exchange or refresh
//   - [DeviceCode], [DevicePollResult] : Device-code login state
//
// 2. Persistent Entities
//   - [User] : Account that token rows hang off
//   - [TokenFields] : The validity projection of a stored token set
//   - [TransferRecord] : Progress and failure accounting for one transfer job
//
// Persistent entities implement the Model interface; [Repository] defines CRUD for the generic cases.
package models
