package entity

import "strings"

// RosterEntry is a student as known to the roster (estudiantes).
type RosterEntry struct {
	RUN       string `json:"run"`
	Nombres   string `json:"nombres"`
	Apellidos string `json:"apellidos"`
	Carrera   string `json:"carrera"`
	Modalidad string `json:"modalidad"`
}

// FullName joins given names and surnames.
func (r RosterEntry) FullName() string {
	return strings.TrimSpace(r.Nombres + " " + r.Apellidos)
}
