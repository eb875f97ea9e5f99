// Package models defines data structures for the harvester.
package models

// Record is one parsed unit of data extracted from a listing page.
type Record interface {
	// Kind names the record family, used as table name by tabular sinks.
	Kind() string
	// Key identifies the record within its family.
	Key() string
	// Header lists the column names in the order Row emits values.
	Header() []string
	// Row renders the record as a flat row.
	Row() []string
}
