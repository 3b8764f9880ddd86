// Package feed fetches parcel records from the regional open-data datastore.
// The datastore exposes a SQL-over-HTTP search endpoint; records come back as
// field-keyed JSON objects using the assessment dataset's column names.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one raw parcel record from the bulk feed. Field names follow the
// assessment dataset's columns. The full raw object is retained so snapshots
// can store the record verbatim.
type Record struct {
	ParcelID      string          `json:"PARID"`
	Municode      int             `json:"MUNICODE"`
	HouseNum      string          `json:"PROPERTYHOUSENUM"`
	Address       string          `json:"PROPERTYADDRESS"`
	Unit          string          `json:"PROPERTYUNIT"`
	City          string          `json:"PROPERTYCITY"`
	State         string          `json:"PROPERTYSTATE"`
	Zip           string          `json:"PROPERTYZIP"`
	LivingArea    int             `json:"FINISHEDLIVINGAREA"`
	Condition     int             `json:"CONDITION"`
	TaxYear       int             `json:"TAXYEAR"`
	ChangeAddress string          `json:"CHANGENOTICEADDRESS1"`
	Raw           json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the datastore object while keeping a verbatim copy of
// the raw JSON. The datastore reports numeric columns inconsistently (some
// rows carry "2020.0", some 2020, some null), so numbers are accepted in any
// of those shapes.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to decode feed record: %w", err)
	}

	r.Raw = append(json.RawMessage(nil), data...)
	r.ParcelID = stringField(fields, "PARID")
	r.HouseNum = stringField(fields, "PROPERTYHOUSENUM")
	r.Address = stringField(fields, "PROPERTYADDRESS")
	r.Unit = stringField(fields, "PROPERTYUNIT")
	r.City = stringField(fields, "PROPERTYCITY")
	r.State = stringField(fields, "PROPERTYSTATE")
	r.Zip = stringField(fields, "PROPERTYZIP")
	r.ChangeAddress = stringField(fields, "CHANGENOTICEADDRESS1")

	var err error
	if r.Municode, err = intField(fields, "MUNICODE"); err != nil {
		return err
	}
	if r.LivingArea, err = intField(fields, "FINISHEDLIVINGAREA"); err != nil {
		return err
	}
	if r.Condition, err = intField(fields, "CONDITION"); err != nil {
		return err
	}
	if r.TaxYear, err = intField(fields, "TAXYEAR"); err != nil {
		return err
	}
	return nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Non-string scalar; keep its literal text.
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return strings.Trim(text, `"`)
}

func intField(fields map[string]json.RawMessage, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, nil
	}
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return 0, fmt.Errorf("feed record field %s is not numeric: %q", key, text)
	}
	return int(f), nil
}
