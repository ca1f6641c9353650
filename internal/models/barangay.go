package models

import "strings"

// Barangay is the unit being assessed.
type Barangay struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Municipality string `json:"municipality"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// BarangayRequest is used for create and update.
type BarangayRequest struct {
	Name         string `json:"name"`
	Municipality string `json:"municipality"`
}

func (r *BarangayRequest) Validate() map[string]string {
	errors := map[string]string{}
	r.Name = strings.TrimSpace(r.Name)
	r.Municipality = strings.TrimSpace(r.Municipality)
	if r.Name == "" {
		errors["name"] = "Barangay name is required"
	}
	return errors
}
