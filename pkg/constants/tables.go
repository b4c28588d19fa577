package constants

// CRM table names. Every table except user_profiles is owner scoped by user_id.
const (
	TableUserProfiles = "user_profiles"
	TableCompanies    = "companies"
	TableContacts     = "contacts"
	TableDeals        = "deals"
	TableActivities   = "activities"
	TableTasks        = "tasks"
	TableDocuments    = "documents"
)

// CRMTables lists the tables in dependency order (referenced tables first).
var CRMTables = []string{
	TableUserProfiles,
	TableCompanies,
	TableContacts,
	TableDeals,
	TableActivities,
	TableTasks,
	TableDocuments,
}

// IsCRMTable reports whether name is one of the CRM tables.
func IsCRMTable(name string) bool {
	for _, t := range CRMTables {
		if t == name {
			return true
		}
	}
	return false
}

// IsOwnedTable reports whether rows of the table carry a user_id owner column.
func IsOwnedTable(name string) bool {
	return IsCRMTable(name) && name != TableUserProfiles
}
