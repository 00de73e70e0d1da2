package model

// Record is one row addressed by column position. A nil entry is a SQL NULL.
type Record []*string

// NullRecord returns an all-null record of the given width.
func NullRecord(width int) Record {
	return make(Record, width)
}

// Str returns a pointer to a copy of s.
func Str(s string) *string {
	return &s
}

// Strings renders the record as plain strings, NULL becoming "".
func (r Record) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		if v != nil {
			out[i] = *v
		}
	}
	return out
}

// IsNull reports whether every value in the record is NULL.
func (r Record) IsNull() bool {
	for _, v := range r {
		if v != nil {
			return false
		}
	}
	return true
}

// Table is an in-memory tabular data set with a header row.
type Table struct {
	Header []string `json:"header"`
	Rows   []Record `json:"rows"`
}

// ColumnIndex returns the position of the first column with the given name, or -1.
func (t *Table) ColumnIndex(name string) int {
	return IndexOf(t.Header, name)
}

// IndexOf returns the position of the first occurrence of name in cols, or -1.
func IndexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

// NameRow pairs a row offset with the raw entity name stored on that row.
type NameRow struct {
	Offset int64
	Name   *string
}

// CleanedName is a normalized entity name to write back onto a row.
type CleanedName struct {
	Offset  int64
	Cleaned string
}

// MatchResult is the lookup outcome for one roster entry.
type MatchResult struct {
	Key     string `json:"key"`     // normalized, suffix-stripped name used for the lookup
	Matched bool   `json:"matched"` // false means Record is all-null
	Record  Record `json:"record"`
}
