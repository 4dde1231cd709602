package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table in the tenant schema. The SSN is stored
// only as ciphertext; plaintext never touches the database.
type Patient struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	MRN          string     `db:"mrn" json:"mrn"`
	GivenName    string     `db:"given_name" json:"given_name"`
	FamilyName   string     `db:"family_name" json:"family_name"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	SSNEncrypted string     `db:"ssn_encrypted" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// View is a Patient rendered for API responses. SSN carries the decrypted
// value; SSNUnavailable is set instead when the stored ciphertext could not
// be opened, so a decryption failure is never confused with "no SSN on
// file".
type View struct {
	Patient
	SSN            string `json:"ssn,omitempty"`
	SSNUnavailable bool   `json:"ssn_unavailable,omitempty"`
}

// Input is the caller-supplied patient payload.
type Input struct {
	MRN        string     `json:"mrn"`
	GivenName  string     `json:"given_name"`
	FamilyName string     `json:"family_name"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	SSN        string     `json:"ssn,omitempty"`
}
