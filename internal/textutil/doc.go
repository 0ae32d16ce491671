// Package textutil provides filename sanitization helpers.
//
// Artifact names are derived from whatever label the printer reports for a
// job, which is often the uploaded G-code file name and may contain spaces,
// accents, or path separators.
package textutil
