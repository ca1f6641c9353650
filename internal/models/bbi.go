package models

// BBI is a barangay-based institution (BDRRMC, BADAC, BCPC, ...).
type BBI struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	GovernanceArea string `json:"governanceArea"`
}

// BBIStatus is the functionality of a BBI in a barangay for a year.
type BBIStatus struct {
	BBIID      string `json:"bbiId"`
	BBICode    string `json:"bbiCode"`
	BarangayID string `json:"barangayId"`
	Year       int    `json:"year"`
	Status     string `json:"status"`
	UpdatedAt  string `json:"updatedAt"`
}

// BBI functionality statuses.
const (
	BBIFunctional          = "Functional"
	BBIPartiallyFunctional = "Partially Functional"
	BBINonFunctional       = "Non-Functional"
)

var validBBIStatuses = map[string]bool{
	BBIFunctional:          true,
	BBIPartiallyFunctional: true,
	BBINonFunctional:       true,
}

// SetBBIStatusRequest records a BBI status for one barangay and year.
type SetBBIStatusRequest struct {
	BarangayID string `json:"barangayId"`
	Year       int    `json:"year"`
	Status     string `json:"status"`
}

func (r *SetBBIStatusRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.BarangayID == "" {
		errors["barangayId"] = "Barangay is required"
	}
	if r.Year < 2000 || r.Year > 2100 {
		errors["year"] = "Year must be between 2000 and 2100"
	}
	if !validBBIStatuses[r.Status] {
		errors["status"] = "Status must be Functional, Partially Functional or Non-Functional"
	}
	return errors
}
