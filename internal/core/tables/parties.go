package tables

import "github.com/JonMunkholm/pharmadist/internal/core"

func init() {
	registerParties()
}

func registerParties() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   core.TableParties,
			Label: "Parties",
		},
		Indexes: []string{
			core.FieldName,
			core.FieldGSTIN,
			core.FieldPhone,
			core.FieldType,
			core.FieldPricingTier,
		},
		SearchFields: []string{core.FieldName, core.FieldGSTIN, core.FieldPhone},
		Import:       core.PartySchema,
	})
}
