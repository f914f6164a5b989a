// Package runlog records pipeline events and failures as an append-only sequence.
//
// RunLog never fails its caller on append: a storage failure is reported to the
// process logger and the entry is dropped. Readers always observe a consistent
// prefix of the log. Storage is pluggable through Store; MemoryStore keeps entries
// for the lifetime of the process and SQLiteStore persists them across restarts.
package runlog
