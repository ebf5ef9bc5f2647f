package core

import (
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoItems is returned when an invoice is built without lines.
	ErrNoItems = errors.New("invoice has no items")

	// ErrNoParty is returned when an invoice names no party.
	ErrNoParty = errors.New("invoice party is missing")
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
	half    = decimal.NewFromFloat(0.5)
)

// IsInterState reports whether a sale crosses state lines, which decides
// IGST against the CGST/SGST split.
func IsInterState(party Party, company CompanyProfile) bool {
	return party.StateCode != company.StateCode
}

// CalculateLine fills the tax columns of item from its rate, quantity,
// discount and GST rate. Free quantity is not billed.
func CalculateLine(item InvoiceItem, interState bool) InvoiceItem {
	rate := decimal.NewFromFloat(item.Rate)
	qty := decimal.NewFromFloat(item.Qty)
	discount := decimal.NewFromFloat(item.Discount)
	gst := decimal.NewFromFloat(item.GSTRate)

	taxable := rate.Mul(qty).Mul(decimal.NewFromInt(1).Sub(discount.Div(hundred)))
	tax := taxable.Mul(gst).Div(hundred)

	item.Taxable = money(taxable)
	item.CGST, item.SGST, item.IGST = 0, 0, 0
	if interState {
		item.IGST = money(tax)
	} else {
		item.CGST = money(tax.Div(two))
		item.SGST = money(tax.Div(two))
	}
	item.Total = money(taxable.Add(tax))
	return item
}

// InvoiceTotals holds the footer of an invoice.
type InvoiceTotals struct {
	Subtotal   float64
	TotalTax   float64
	RoundOff   float64
	GrandTotal float64
}

// Totals sums already calculated lines. The grand total is rounded to the
// nearest rupee, halves upward, and the difference is reported as round-off.
func Totals(items []InvoiceItem) InvoiceTotals {
	subtotal := decimal.Zero
	totalTax := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Taxable))
		totalTax = totalTax.
			Add(decimal.NewFromFloat(it.CGST)).
			Add(decimal.NewFromFloat(it.SGST)).
			Add(decimal.NewFromFloat(it.IGST))
	}

	raw := subtotal.Add(totalTax)
	grand := raw.Add(half).Floor()

	return InvoiceTotals{
		Subtotal:   subtotal.InexactFloat64(),
		TotalTax:   totalTax.InexactFloat64(),
		RoundOff:   money(grand.Sub(raw)),
		GrandTotal: grand.InexactFloat64(),
	}
}

// InvoiceNumber derives a number from the last six digits of the unix
// millisecond clock.
func InvoiceNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "TI-" + ms
}

// InvoiceDraft is what a caller supplies to raise an invoice.
type InvoiceDraft struct {
	PartyID   int64         `json:"partyId"`
	Type      PartyType     `json:"type"`
	Logistics Logistics     `json:"logistics"`
	Items     []InvoiceItem `json:"items"`
}

// BuildInvoice prices every line for party and company and fills the totals.
func BuildInvoice(party Party, company CompanyProfile, draft InvoiceDraft, now time.Time) (Invoice, error) {
	if party.Name == "" {
		return Invoice{}, ErrNoParty
	}
	if len(draft.Items) == 0 {
		return Invoice{}, ErrNoItems
	}

	typ := draft.Type
	if typ == "" {
		typ = PartyWholesale
	}

	interState := IsInterState(party, company)
	items := make([]InvoiceItem, len(draft.Items))
	for i, it := range draft.Items {
		items[i] = CalculateLine(it, interState)
	}
	totals := Totals(items)

	return Invoice{
		InvoiceNo:  InvoiceNumber(now),
		Date:       now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Type:       typ,
		PartyName:  party.Name,
		PartyGSTIN: party.GSTIN,
		Logistics:  draft.Logistics,
		Items:      items,
		Subtotal:   totals.Subtotal,
		TotalTax:   totals.TotalTax,
		RoundOff:   totals.RoundOff,
		GrandTotal: totals.GrandTotal,
	}, nil
}

// money rounds to paise.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
