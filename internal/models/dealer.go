package models

import (
	"bytes"
	"encoding/json"
)

// DefaultDealerHeading is shown when the dealer record is missing or has no name
const DefaultDealerHeading = "Dealership"

// Dealer is a dealership record as returned by the dealer service.
// It is read-only and only used for display.
type Dealer struct {
	ID        int        `json:"id"`
	FullName  string     `json:"full_name"`
	ShortName string     `json:"short_name,omitempty"`
	Address   string     `json:"address,omitempty"`
	City      string     `json:"city,omitempty"`
	State     string     `json:"state,omitempty"`
	St        string     `json:"st,omitempty"`
	Zip       FlexString `json:"zip,omitempty"`
	Lat       FlexString `json:"lat,omitempty"`
	Long      FlexString `json:"long,omitempty"`
}

// DisplayName returns the heading for the review page
func (d Dealer) DisplayName() string {
	if d.FullName == "" {
		return DefaultDealerHeading
	}
	return d.FullName
}

// CarModel is one row of the car catalog
type CarModel struct {
	CarMake  string `json:"CarMake"`
	CarModel string `json:"CarModel"`
}

// Key is the combined make/model string used as the selection value
func (c CarModel) Key() string {
	return c.CarMake + " " + c.CarModel
}

// FlexString decodes JSON strings and numbers alike; the dealer service is not
// consistent about zip codes and coordinates.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
