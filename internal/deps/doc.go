// Package deps reports whether the external binaries printlapse shells out
// to are installed.
package deps
