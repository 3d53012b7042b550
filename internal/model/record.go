package model

import "time"

// DocumentRecord represents the structured fields extracted from one source document
type DocumentRecord struct {
	SourceID    string    `json:"source_id"`          // Opaque handle to the source document (storage URL)
	SourceName  string    `json:"source_name"`        // Original document name
	RawText     string    `json:"raw_text,omitempty"` // Extracted text, truncated before model submission
	Category    Category  `json:"category"`           // Document category from the fixed enumeration
	IdentityKey string    `json:"identity_key"`       // Patient/claim identity signal ("Unknown" when absent)
	EventDate   time.Time `json:"event_date"`         // Date the document pertains to (today when unparseable)
	Fields      Fields    `json:"fields"`             // Descriptive attributes, used only for reporting
}

// HasIdentity reports whether the record carries a usable identity signal.
// Records without one are never auto-merged into a claim.
func (r *DocumentRecord) HasIdentity() bool {
	return r.IdentityKey != "" && r.IdentityKey != UnknownIdentity
}

// UnknownIdentity is the documented fallback when no identity signal is present
const UnknownIdentity = "Unknown"

// Category classifies the document type
type Category string

const (
	CategoryPrescription     Category = "Prescription"
	CategoryConsultationBill Category = "ConsultationBill"
	CategoryMedicineBill     Category = "MedicineBill"
	CategoryDiagnosticsBill  Category = "DiagnosticsBill"
	CategoryOther            Category = "Other"
)

// Categories lists the fixed enumeration in prompt order
func Categories() []Category {
	return []Category{
		CategoryPrescription,
		CategoryConsultationBill,
		CategoryMedicineBill,
		CategoryDiagnosticsBill,
		CategoryOther,
	}
}

// ParseCategory maps free-form model output onto the enumeration,
// coercing anything unrecognized to Other
func ParseCategory(s string) Category {
	for _, c := range Categories() {
		if s == string(c) {
			return c
		}
	}
	return CategoryOther
}

// Fields holds the remaining descriptive attributes of a record.
// Free-form, no uniqueness constraints.
type Fields struct {
	PatientName string `json:"patient_name,omitempty"`
	ClinicName  string `json:"clinic_name,omitempty"`
	BillNumber  string `json:"bill_number,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Context     string `json:"context,omitempty"` // Disease/episode context used for derived identity
}
