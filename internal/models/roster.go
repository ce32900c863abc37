package models

// The roster records below are owned by the surrounding administration
// system; this service reads them only to verify references and snapshot
// display names onto assignments.

// Teacher is an external roster entry for an active teacher.
type Teacher struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	FullName string `db:"full_name" json:"full_name"`
	Active   bool   `db:"active" json:"active"`
}

// Subject is an external roster entry for a taught subject.
type Subject struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
	Active   bool   `db:"active" json:"active"`
}

// Class is an external roster entry for an active class.
type Class struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
	Active   bool   `db:"active" json:"active"`
}
