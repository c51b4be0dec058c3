package models

// MenuSpec is a structured list menu, rendered either as a WhatsApp list
// message or as numbered text.
type MenuSpec struct {
	Title    string        `json:"title"`
	Body     string        `json:"body,omitempty"`
	Footer   string        `json:"footer,omitempty"`
	Sections []MenuSection `json:"sections"`
}

type MenuSection struct {
	Title string    `json:"title"`
	Rows  []MenuRow `json:"rows"`
}

type MenuRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// RowCount returns the number of rows across all sections.
func (m MenuSpec) RowCount() int {
	n := 0
	for _, s := range m.Sections {
		n += len(s.Rows)
	}
	return n
}
