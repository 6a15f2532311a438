package models

import "strings"

// Address is a flat postal address. No normalization is performed on any field.
type Address struct {
	Street     string `json:"street"`      // Street is the full street line, e.g. "123 Main St".
	City       string `json:"city"`        // City or municipality.
	Region     string `json:"region"`      // Region is the state or province.
	PostalCode string `json:"postal_code"` // PostalCode is the zip or postal code.
	Country    string `json:"country"`     // Country code as expected by the provider.

	// Optional structured parts, filled by reverse lookups and used for qualified queries.
	HouseNumber string `json:"house_number,omitempty"`
	StreetName  string `json:"street_name,omitempty"`
	District    string `json:"district,omitempty"`
}

// StreetLine returns Street, or the house number and street name joined when Street is empty.
func (a Address) StreetLine() string {
	if a.Street != "" {
		return a.Street
	}

	return strings.TrimSpace(a.HouseNumber + " " + a.StreetName)
}
