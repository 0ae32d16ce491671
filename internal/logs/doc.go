// Package logs reads the daemon log from disk for `printlapse logs`.
//
// Last returns the final lines of a file with bounded memory, and Follow
// polls for appended lines until its context ends. Follow notices when the
// daemon repoints printlapse.log at a new run file and starts again from the
// top of the new file.
package logs
