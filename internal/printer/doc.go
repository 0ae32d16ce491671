// Package printer reads activity reports from a network-attached 3D printer.
//
// The client issues a single GET per poll and pulls the printer state, job
// identifier, and job label out of the JSON response using configurable
// dotted paths, so PrusaLink, OctoPrint-style proxies, and home-grown bridges
// can all be described in configuration. Job identifiers are kept opaque.
package printer
