package tables

import "github.com/JonMunkholm/pharmadist/internal/core"

func init() {
	registerProducts()
}

func registerProducts() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   core.TableProducts,
			Label: "Inventory",
		},
		Indexes: []string{
			core.FieldName,
			core.FieldManufacturer,
			core.FieldBatch,
			core.FieldHSN,
		},
		SearchFields: []string{core.FieldName, core.FieldBatch, core.FieldManufacturer},
		Import:       core.ProductSchema,
	})
}
