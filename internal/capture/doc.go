// Package capture runs the long-lived frame grabber that writes numbered JPEG
// frames for the current print job.
//
// The Manager guarantees at most one grabber process. Start either resumes
// numbering after the highest frame already on disk or clears the directory
// and starts at frame 1. Stop sends a terminate signal to the grabber's process
// group, waits a short grace window, and then kills it. A background reaper
// notices grabbers that die on their own so IsCapturing stays truthful.
package capture
