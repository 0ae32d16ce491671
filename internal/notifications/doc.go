// Package notifications announces finished timelapse videos.
//
// Two delivery paths exist and may be combined: a shell command template run
// once per video (placeholders are shell-quoted before substitution) and an
// ntfy topic that receives a short plain-text push. With neither configured
// the service is a noop.
package notifications
