package portal

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cogland/parcelsync/internal/models"
)

// ErrOwnerNotFound is returned when the assessment page carries no owner
// label, which usually means the parcel does not exist on the portal.
var ErrOwnerNotFound = errors.New("owner name not found on portal page")

// OwnerName is the owner string scraped from the portal, kept verbatim in
// Raw alongside a best-effort split into name parts. The portal lists owners
// surname first.
type OwnerName struct {
	Raw   string
	First string
	Last  string
}

// Person converts the scraped owner name into a Person entity.
func (o OwnerName) Person() models.Person {
	return models.Person{
		RawName:   o.Raw,
		FirstName: o.First,
		LastName:  o.Last,
	}
}

// ParseOwner extracts the owner name from an assessment page.
func ParseOwner(markup []byte) (OwnerName, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return OwnerName{}, fmt.Errorf("failed to parse portal markup: %w", err)
	}

	raw := doc.Find("#BasicInfo1_lblOwner").First().Text()
	if strings.TrimSpace(raw) == "" {
		return OwnerName{}, ErrOwnerNotFound
	}

	owner := OwnerName{Raw: raw}
	parts := strings.Fields(raw)
	if len(parts) > 0 {
		owner.Last = parts[0]
	}
	if len(parts) > 1 {
		owner.First = strings.Join(parts[1:], " ")
	}
	return owner, nil
}

// ParseTaxStatus extracts the current-year tax standing from an assessment
// page. It returns nil when the page has no tax section at all; a present
// section with a blank status yields a TaxStatus with a nil PaidStatus.
func ParseTaxStatus(markup []byte) (*models.TaxStatus, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse portal markup: %w", err)
	}

	yearLabel := doc.Find("#lblTaxYear").First()
	if yearLabel.Length() == 0 {
		return nil, nil
	}

	status := &models.TaxStatus{
		Year:     strings.TrimSpace(yearLabel.Text()),
		Tax:      amountText(doc, "#lblTax"),
		Penalty:  amountText(doc, "#lblPenalty"),
		Interest: amountText(doc, "#lblInterest"),
		Total:    amountText(doc, "#lblTotal"),
	}

	if paid := strings.TrimSpace(doc.Find("#lblTaxPaidStatus").First().Text()); paid != "" {
		status.PaidStatus = &paid
	}
	if date := strings.TrimSpace(doc.Find("#lblDatePaid").First().Text()); date != "" {
		status.DatePaid = &date
	}
	return status, nil
}

// ParseSitusAddress extracts the property's situs address lines, used by the
// absence reconciler's municipality directory fallback.
func ParseSitusAddress(markup []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse portal markup: %w", err)
	}

	line1 := strings.TrimSpace(doc.Find("#BasicInfo1_lblAddress1").First().Text())
	line2 := strings.TrimSpace(doc.Find("#BasicInfo1_lblAddress2").First().Text())
	return strings.TrimSpace(line1 + " " + line2), nil
}

// amountText strips the currency prefix the portal renders on money cells.
func amountText(doc *goquery.Document, selector string) string {
	text := strings.TrimSpace(doc.Find(selector).First().Text())
	return strings.TrimPrefix(text, "$")
}
