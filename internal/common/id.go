package common

import (
	"github.com/google/uuid"
)

// NewCompanyID generates a unique company ID with the "company_" prefix
// Format: company_<uuid>
func NewCompanyID() string {
	return "company_" + uuid.New().String()
}
