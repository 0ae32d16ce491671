// Package services defines shared utilities consumed by the monitor and its
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp printer job IDs, capture run IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from the
//     printer client, ffmpeg, and notifiers can be classified uniformly.
package services
