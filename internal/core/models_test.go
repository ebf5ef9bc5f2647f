package core

import (
	"encoding/json"
	"testing"
)

func TestProductFromRecord_Lenient(t *testing.T) {
	rec := Record{ID: 9, Values: Values{
		FieldName:    "Azithral 500",
		FieldBatch:   1234.0,
		FieldMRP:     "₹120.50",
		FieldStock:   "n/a",
		FieldGSTRate: 12.0,
		FieldOldMRP:  "110",
		FieldTags:    []any{"antibiotic", "rx"},
	}}

	p := ProductFromRecord(rec)
	if p.ID != 9 || p.Name != "Azithral 500" || p.Batch != "1234" {
		t.Errorf("text fields = %+v", p)
	}
	if p.MRP != 120.5 || p.Stock != 0 || p.GSTRate != 12 {
		t.Errorf("numeric fields = mrp %v stock %v gst %v", p.MRP, p.Stock, p.GSTRate)
	}
	if p.OldMRP == nil || *p.OldMRP != 110 {
		t.Errorf("OldMRP = %v, want 110", p.OldMRP)
	}
	if len(p.Tags) != 2 || p.Tags[1] != "rx" {
		t.Errorf("Tags = %v", p.Tags)
	}

	if p := ProductFromRecord(Record{Values: Values{}}); p.OldMRP != nil {
		t.Error("absent oldMrp should stay nil")
	}
}

func TestPartyValidate(t *testing.T) {
	tests := []struct {
		name    string
		party   Party
		wantErr bool
	}{
		{"valid", Party{Name: "A", Type: PartyRetail, PricingTier: TierHospital}, false},
		{"missing name", Party{Type: PartyRetail, PricingTier: TierRetail}, true},
		{"bad type", Party{Name: "A", Type: "SHOP", PricingTier: TierRetail}, true},
		{"bad tier", Party{Name: "A", Type: PartyWholesale, PricingTier: "GOLD"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.party.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValuesRoundTrip(t *testing.T) {
	party := Party{ID: 5, Name: "City Medicals", StateCode: "24", Type: PartyWholesale, CreditLimit: 5000}

	vals, err := ToValues(party)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := vals["id"]; ok {
		t.Error("ToValues kept the id")
	}
	if vals[FieldCreditLimit] != 5000.0 {
		t.Errorf("creditLimit = %v", vals[FieldCreditLimit])
	}

	var got Party
	if err := FromRecord(Record{ID: 7, Values: vals}, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != 7 || got.Name != party.Name || got.CreditLimit != 5000 {
		t.Errorf("FromRecord = %+v", got)
	}
}

func TestRecordMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Record{ID: 3, Values: Values{FieldName: "Dolo", "id": "ignored"}})
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["id"] != 3.0 || out[FieldName] != "Dolo" {
		t.Errorf("marshaled record = %s", data)
	}
}

func TestValuesClone(t *testing.T) {
	orig := Values{FieldName: "a"}
	c := orig.Clone()
	c[FieldName] = "b"
	if orig[FieldName] != "a" {
		t.Error("Clone shares the map")
	}
}

func TestRawRowGet(t *testing.T) {
	r := RawRow{{Header: "Qty", Value: "5"}, {Header: "Qty", Value: "7"}}
	if v, ok := r.Get("Qty"); !ok || v != "5" {
		t.Errorf("Get(Qty) = %v, %v; want the first cell", v, ok)
	}
	if _, ok := r.Get("qty"); ok {
		t.Error("Get should match headers exactly")
	}
}
