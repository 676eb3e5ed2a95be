package models

import "time"

// Admission types accepted for a patient.
const (
	AdmissionAmbulance = "Ambulance"
	AdmissionSelf      = "Self"
	AdmissionWalkIn    = "Walk-in"
	AdmissionReference = "Reference"
	AdmissionOther     = "Other"
)

var admissionTypes = map[string]struct{}{
	AdmissionAmbulance: {},
	AdmissionSelf:      {},
	AdmissionWalkIn:    {},
	AdmissionReference: {},
	AdmissionOther:     {},
}

// ValidAdmissionType reports whether t is one of the accepted admission types.
func ValidAdmissionType(t string) bool {
	_, ok := admissionTypes[t]
	return ok
}

// Patient is an admitted patient. Patients own their transactions: deleting a
// patient removes every transaction recorded against it.
type Patient struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	AdmissionDate string    `json:"admission_date"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}
