// Package strtable implements string interning for the hammer compiler and
// runtime.
//
// Every distinct string used as an identifier, constant, or diagnostic
// message is stored once; callers hold a small integer [Handle] instead of
// copying the string around. Handles compare equal exactly when their
// strings are equal, so symbol/type lookups and constant-pool dedup operate
// on cheap integer keys. Grounded on the original compiler's StringTable,
// reimplemented with a swiss-table index over Go-native strings instead of
// an arena-backed C struct.
package strtable

import (
	"github.com/dolthub/swiss"
)

// Handle is an interned string reference. The zero Handle is never assigned
// to a real string and denotes "no string" (e.g. an anonymous function).
type Handle uint32

// Invalid is the sentinel handle value.
const Invalid Handle = 0

// Table interns strings to [Handle]s and back.
type Table struct {
	byIndex   []string
	byContent *swiss.Map[string, Handle]
	bytes     int
}

// New creates an empty Table.
func New() *Table {
	return &Table{
		byIndex:   []string{""}, // index 0 reserved for Invalid
		byContent: swiss.NewMap[string, Handle](uint32(64)),
	}
}

// Intern returns the Handle for s, inserting it if not already present.
func (t *Table) Intern(s string) Handle {
	if h, ok := t.byContent.Get(s); ok {
		return h
	}
	h := Handle(len(t.byIndex))
	t.byIndex = append(t.byIndex, s)
	t.byContent.Put(s, h)
	t.bytes += len(s)
	return h
}

// Lookup returns the Handle for s without inserting it.
func (t *Table) Lookup(s string) (Handle, bool) {
	return t.byContent.Get(s)
}

// Value returns the string content for h. It panics if h was never issued
// by this table — callers should treat that as a compiler-internal bug,
// not a recoverable error.
func (t *Table) Value(h Handle) string {
	return t.byIndex[h]
}

// Len returns the number of distinct interned strings.
func (t *Table) Len() int { return len(t.byIndex) - 1 }

// ByteSize returns the total number of content bytes held by the table,
// excluding bookkeeping overhead.
func (t *Table) ByteSize() int { return t.bytes }
