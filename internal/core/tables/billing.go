package tables

import "github.com/JonMunkholm/pharmadist/internal/core"

func init() {
	registerInvoices()
	registerSettings()
}

func registerInvoices() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   core.TableInvoices,
			Label: "Invoices",
		},
		Indexes:      []string{"invoiceNo", "date", "partyName"},
		SearchFields: []string{"invoiceNo", "partyName"},
	})
}

// registerSettings holds key/value application settings such as the company
// profile.
func registerSettings() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   core.TableSettings,
			Label: "Settings",
		},
		Indexes:      []string{core.SettingKey},
		SearchFields: []string{core.SettingKey},
	})
}
