package models

// TaxStatus is the tax standing of a parcel for a single year as reported by
// the county assessment portal. Monetary amounts are kept as the scraped
// strings; the engine never does arithmetic on them, it only records and
// compares observations.
//
// PaidStatus is nil when the portal shows no status for the year (blank row),
// which is distinct from any of the PAID / UNPAID / BALANCE DUE values.
// DatePaid is nil unless the taxes have been paid.
type TaxStatus struct {
	ID         int64   `json:"id"`
	Year       string  `json:"year"`
	PaidStatus *string `json:"paid_status"`
	Tax        string  `json:"tax"`
	Penalty    string  `json:"penalty"`
	Interest   string  `json:"interest"`
	Total      string  `json:"total"`
	DatePaid   *string `json:"date_paid"`
}
