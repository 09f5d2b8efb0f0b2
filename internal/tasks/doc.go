// Package tasks runs playlist transfers from Spotify to YouTube Music as a two-phase protocol.
//
// # Dispatch
//
// [Dispatcher.Dispatch] validates the request, durably records intent as an
// in-progress [models.TransferRecord], fetches every requested playlist from the
// source catalog and publishes a [models.TransferJob] to the message bus. It returns
// the transfer id without waiting for any migration work.
//
// # Execute
//
// [Executor.Execute] is invoked by a bus consumer. It obtains a destination token,
// then for each playlist creates the destination playlist and runs the [Matcher].
// Failures are isolated per playlist and folded into the record's counters; only a
// token failure aborts the whole job.
//
// # Progress Reporting
//
// Execute optionally reports [ProgressUpdate] values on a channel. Sends never block:
// a full channel drops the update.
package tasks
