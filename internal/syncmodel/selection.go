package syncmodel

// Rows is the part of a model a Selection needs.
type Rows interface {
	RowID(row int) string
	IndexOf(id string) int
}

// Selection keeps a selected row across model resets by remembering its
// record id.
type Selection struct {
	id string
}

// Select remembers the record at row. Out of range rows clear the
// selection.
func (s *Selection) Select(rows Rows, row int) {
	s.id = rows.RowID(row)
}

// ID returns the selected record id, or "".
func (s *Selection) ID() string {
	return s.id
}

// Clear drops the selection.
func (s *Selection) Clear() {
	s.id = ""
}

// Restore returns the row now holding the selected record. When the record
// is gone the selection is cleared and -1 returned.
func (s *Selection) Restore(rows Rows) int {
	if s.id == "" {
		return -1
	}
	i := rows.IndexOf(s.id)
	if i < 0 {
		s.id = ""
	}
	return i
}
