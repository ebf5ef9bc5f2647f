package core

// FieldMapping binds one target field to the column headers accepted for it.
type FieldMapping struct {
	Field    string
	Synonyms []string
}

// ImportSchema is the static mapping configuration for one Kind.
type ImportSchema struct {
	Kind   Kind
	Fields []FieldMapping

	// Defaults are seeded into every normalized record before mapping.
	Defaults Values

	// Numeric maps numeric fields to the value used when a mapped cell does
	// not parse.
	Numeric map[string]float64

	// aliases holds the normalized synonym set per field.
	aliases map[string]map[string]struct{}
}

// newImportSchema normalizes every synonym the same way headers are
// normalized, so "batch_no" and "Batch No." meet at "batchno".
func newImportSchema(kind Kind, fields []FieldMapping, defaults Values, numeric map[string]float64) *ImportSchema {
	s := &ImportSchema{
		Kind:     kind,
		Fields:   fields,
		Defaults: defaults,
		Numeric:  numeric,
		aliases:  make(map[string]map[string]struct{}, len(fields)),
	}
	for _, f := range fields {
		set := make(map[string]struct{}, len(f.Synonyms))
		for _, syn := range f.Synonyms {
			set[NormalizeHeader(syn)] = struct{}{}
		}
		s.aliases[f.Field] = set
	}
	return s
}

// Matches reports whether an already-normalized header is a synonym of field.
func (s *ImportSchema) Matches(field, normalizedHeader string) bool {
	_, ok := s.aliases[field][normalizedHeader]
	return ok
}

// Target field names.
const (
	FieldName           = "name"
	FieldManufacturer   = "manufacturer"
	FieldBatch          = "batch"
	FieldExpiry         = "expiry"
	FieldHSN            = "hsn"
	FieldGSTRate        = "gstRate"
	FieldMRP            = "mrp"
	FieldOldMRP         = "oldMrp"
	FieldPurchaseRate   = "purchaseRate"
	FieldSaleRate       = "saleRate"
	FieldStock          = "stock"
	FieldTags           = "tags"
	FieldGSTIN          = "gstin"
	FieldAddress        = "address"
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldStateCode      = "stateCode"
	FieldDL1            = "dl1"
	FieldDL2            = "dl2"
	FieldType           = "type"
	FieldPricingTier    = "pricingTier"
	FieldCreditLimit    = "creditLimit"
	FieldCurrentBalance = "currentBalance"
)

// DefaultStock is the stock assumed when a sheet carries no usable quantity.
const DefaultStock = 10

// ProductSchema maps inventory sheets onto products.
var ProductSchema = newImportSchema(KindProduct,
	[]FieldMapping{
		{FieldName, []string{"product", "item", "medicine", "name", "description", "brand"}},
		{FieldManufacturer, []string{"mfg", "manufacturer", "company", "brand_name", "lab"}},
		{FieldBatch, []string{"batch", "lot", "bno", "batch_no"}},
		{FieldExpiry, []string{"exp", "expiry", "valid_till", "exp_date"}},
		{FieldHSN, []string{"hsn", "hsn_code", "code"}},
		{FieldGSTRate, []string{"gst", "tax", "gst_rate", "tax_rate", "igst"}},
		{FieldMRP, []string{"mrp", "max_price"}},
		{FieldOldMRP, []string{"old_mrp", "prev_mrp"}},
		{FieldPurchaseRate, []string{"purchase", "p_rate", "cost", "buy_price"}},
		{FieldSaleRate, []string{"sale", "s_rate", "rate", "selling_price", "wholesale_rate"}},
		{FieldStock, []string{"stock", "qty", "quantity", "closing_stock", "balance"}},
	},
	Values{
		FieldGSTRate:      12.0,
		FieldStock:        float64(DefaultStock),
		FieldPurchaseRate: 0.0,
		FieldSaleRate:     0.0,
		FieldMRP:          0.0,
	},
	map[string]float64{
		FieldGSTRate:      0,
		FieldMRP:          0,
		FieldOldMRP:       0,
		FieldPurchaseRate: 0,
		FieldSaleRate:     0,
		FieldStock:        DefaultStock,
	},
)

// PartySchema maps customer sheets onto parties.
var PartySchema = newImportSchema(KindParty,
	[]FieldMapping{
		{FieldName, []string{"party", "customer", "client", "name", "shop", "firm"}},
		{FieldGSTIN, []string{"gstin", "gst_no", "gst", "tax_id"}},
		{FieldAddress, []string{"address", "location", "city", "area"}},
		{FieldPhone, []string{"phone", "mobile", "contact", "tel"}},
		{FieldEmail, []string{"email", "mail"}},
		{FieldStateCode, []string{"state", "state_code", "code"}},
		{FieldDL1, []string{"dl1", "dl_no_20b", "drug_license_1", "license1"}},
		{FieldDL2, []string{"dl2", "dl_no_21b", "drug_license_2", "license2"}},
		{FieldType, []string{"party_type", "customer_type"}},
		{FieldPricingTier, []string{"pricing_tier", "tier", "price_list"}},
		{FieldCreditLimit, []string{"credit_limit", "credit"}},
		{FieldCurrentBalance, []string{"current_balance", "outstanding", "balance"}},
	},
	Values{
		FieldType:           string(PartyWholesale),
		FieldPricingTier:    string(TierWholesale),
		FieldCreditLimit:    0.0,
		FieldCurrentBalance: 0.0,
	},
	map[string]float64{
		FieldCreditLimit:    0,
		FieldCurrentBalance: 0,
	},
)

// SchemaFor returns the import schema for kind, or nil.
func SchemaFor(kind Kind) *ImportSchema {
	switch kind {
	case KindProduct:
		return ProductSchema
	case KindParty:
		return PartySchema
	}
	return nil
}
