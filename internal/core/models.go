package core

import (
	"encoding/json"
	"fmt"
)

// PartyType distinguishes B2B and B2C customers.
type PartyType string

const (
	PartyWholesale PartyType = "WHOLESALE"
	PartyRetail    PartyType = "RETAIL"
)

// PricingTier selects the price list applied to a party.
type PricingTier string

const (
	TierWholesale     PricingTier = "WHOLESALE"
	TierRetail        PricingTier = "RETAIL"
	TierHospital      PricingTier = "HOSPITAL"
	TierInstitutional PricingTier = "INSTITUTIONAL"
)

// Product is one batch of a stocked item.
type Product struct {
	ID           int64    `json:"id,omitempty"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Batch        string   `json:"batch"`
	Expiry       string   `json:"expiry"`
	HSN          string   `json:"hsn"`
	GSTRate      float64  `json:"gstRate"`
	MRP          float64  `json:"mrp"`
	OldMRP       *float64 `json:"oldMrp,omitempty"`
	PurchaseRate float64  `json:"purchaseRate"`
	SaleRate     float64  `json:"saleRate"`
	Stock        float64  `json:"stock"`
	Tags         []string `json:"tags,omitempty"`
}

// ProductFromRecord reads a product leniently: imported rows may carry
// numbers in text fields and text in numeric ones.
func ProductFromRecord(rec Record) Product {
	num := func(field string) float64 {
		f, _ := ParseNumber(rec.Values[field])
		return f
	}
	p := Product{
		ID:           rec.ID,
		Name:         rec.Text(FieldName),
		Manufacturer: rec.Text(FieldManufacturer),
		Batch:        rec.Text(FieldBatch),
		Expiry:       rec.Text(FieldExpiry),
		HSN:          rec.Text(FieldHSN),
		GSTRate:      num(FieldGSTRate),
		MRP:          num(FieldMRP),
		PurchaseRate: num(FieldPurchaseRate),
		SaleRate:     num(FieldSaleRate),
		Stock:        num(FieldStock),
	}
	if f, ok := ParseNumber(rec.Values[FieldOldMRP]); ok {
		p.OldMRP = &f
	}
	switch tags := rec.Values[FieldTags].(type) {
	case []string:
		p.Tags = tags
	case []any:
		for _, t := range tags {
			p.Tags = append(p.Tags, FormatScalar(t))
		}
	}
	return p
}

// Party is a customer the distributor bills.
type Party struct {
	ID             int64       `json:"id,omitempty"`
	Name           string      `json:"name"`
	GSTIN          string      `json:"gstin"`
	Address        string      `json:"address"`
	Phone          string      `json:"phone"`
	Email          string      `json:"email"`
	StateCode      string      `json:"stateCode"`
	DL1            string      `json:"dl1"`
	DL2            string      `json:"dl2"`
	Type           PartyType   `json:"type"`
	PricingTier    PricingTier `json:"pricingTier"`
	CreditLimit    float64     `json:"creditLimit"`
	CurrentBalance float64     `json:"currentBalance"`
}

// Validate checks the fields a party needs before it can be billed.
func (p Party) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("party name is required")
	}
	switch p.Type {
	case PartyWholesale, PartyRetail:
	default:
		return fmt.Errorf("invalid party type %q: must be WHOLESALE or RETAIL", p.Type)
	}
	switch p.PricingTier {
	case TierWholesale, TierRetail, TierHospital, TierInstitutional:
	default:
		return fmt.Errorf("invalid pricing tier %q", p.PricingTier)
	}
	return nil
}

// PartyFromRecord reads a party leniently, like ProductFromRecord.
func PartyFromRecord(rec Record) Party {
	num := func(field string) float64 {
		f, _ := ParseNumber(rec.Values[field])
		return f
	}
	return Party{
		ID:             rec.ID,
		Name:           rec.Text(FieldName),
		GSTIN:          rec.Text(FieldGSTIN),
		Address:        rec.Text(FieldAddress),
		Phone:          rec.Text(FieldPhone),
		Email:          rec.Text(FieldEmail),
		StateCode:      rec.Text(FieldStateCode),
		DL1:            rec.Text(FieldDL1),
		DL2:            rec.Text(FieldDL2),
		Type:           PartyType(rec.Text(FieldType)),
		PricingTier:    PricingTier(rec.Text(FieldPricingTier)),
		CreditLimit:    num(FieldCreditLimit),
		CurrentBalance: num(FieldCurrentBalance),
	}
}

// CompanyProfile is the seller identity printed on invoices.
type CompanyProfile struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	GSTIN     string `json:"gstin"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	DL1       string `json:"dl1"`
	DL2       string `json:"dl2"`
	StateCode string `json:"stateCode"`
	Terms     string `json:"terms"`
}

// DefaultCompany is used until a profile has been saved.
var DefaultCompany = CompanyProfile{
	Name:      "GOPI DISTRIBUTOR",
	Address:   "74/20/4, Navyug Colony, Bhulabhai Park Crossroad, Ahmedabad-22 Ahmedabad",
	GSTIN:     "24AADPO7411Q1ZE",
	Phone:     "07925383834, 8460143984, 9426005928",
	Email:     "gopi.distributor@yahoo.com",
	DL1:       "GJ-ADC-AA/1946, GJ-ADC-AA/4967",
	DL2:       "GJ-ADC-AA/1953, GJ-ADC-AA/4856",
	StateCode: "24",
	Terms:     "Credit",
}

// Logistics carries the dispatch details of an invoice.
type Logistics struct {
	Transport string `json:"transport"`
	VehicleNo string `json:"vehicleNo"`
	GRNo      string `json:"grNo"`
}

// InvoiceItem is one billed line.
type InvoiceItem struct {
	ProductName string  `json:"productName"`
	Batch       string  `json:"batch"`
	Expiry      string  `json:"expiry"`
	Qty         float64 `json:"qty"`
	FreeQty     float64 `json:"freeQty"`
	MRP         float64 `json:"mrp"`
	Rate        float64 `json:"rate"`
	Discount    float64 `json:"discount"`
	HSN         string  `json:"hsn"`
	GSTRate     float64 `json:"gstRate"`
	Taxable     float64 `json:"taxable"`
	CGST        float64 `json:"cgst"`
	SGST        float64 `json:"sgst"`
	IGST        float64 `json:"igst"`
	Total       float64 `json:"total"`
}

// Invoice is a tax invoice issued to a party.
type Invoice struct {
	ID         int64         `json:"id,omitempty"`
	InvoiceNo  string        `json:"invoiceNo"`
	Date       string        `json:"date"`
	Type       PartyType     `json:"type"`
	PartyName  string        `json:"partyName"`
	PartyGSTIN string        `json:"partyGstin,omitempty"`
	Logistics  Logistics     `json:"logistics"`
	Items      []InvoiceItem `json:"items"`
	Subtotal   float64       `json:"subtotal"`
	TotalTax   float64       `json:"totalTax"`
	RoundOff   float64       `json:"roundOff"`
	GrandTotal float64       `json:"grandTotal"`
}

// ToValues converts a typed entity into store values. The id is dropped;
// stores assign it.
func ToValues(v any) (Values, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}
	var out Values
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	delete(out, "id")
	return out, nil
}

// FromRecord decodes a stored record into a typed entity, including its id.
func FromRecord(rec Record, out any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode record %d: %w", rec.ID, err)
	}
	return nil
}
