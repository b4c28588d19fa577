// Package schema describes the CRM tables independently of SQL dialect.
package schema

import "github.com/nexuscrm/salescrm/pkg/constants"

// ColumnType is a logical column type mapped to SQL per dialect.
type ColumnType string

const (
	TypeID        ColumnType = "id"
	TypeString    ColumnType = "string"
	TypeText      ColumnType = "text"
	TypeMoney     ColumnType = "money"
	TypeInt       ColumnType = "int"
	TypeBigInt    ColumnType = "bigint"
	TypeBool      ColumnType = "bool"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
)

// ColumnDefinition represents a single column in a table
type ColumnDefinition struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Size        int        `json:"size,omitempty"`
	PrimaryKey  bool       `json:"primary_key,omitempty"`
	Unique      bool       `json:"unique,omitempty"`
	Nullable    bool       `json:"nullable,omitempty"`
	Default     string     `json:"default,omitempty"`
	ReferenceTo string     `json:"reference_to,omitempty"`
	OnDelete    string     `json:"on_delete,omitempty"` // CASCADE, SET NULL, RESTRICT
	Options     []string   `json:"options,omitempty"`
}

// IndexDefinition represents an index on a table
type IndexDefinition struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// TableDefinition represents a complete table schema
type TableDefinition struct {
	TableName   string             `json:"table_name"`
	Description string             `json:"description"`
	Columns     []ColumnDefinition `json:"columns"`
	Indices     []IndexDefinition  `json:"indices,omitempty"`
}

// HasColumn reports whether the table declares name.
func (t TableDefinition) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func id() ColumnDefinition {
	return ColumnDefinition{Name: constants.FieldID, Type: TypeID, PrimaryKey: true}
}

func owner() ColumnDefinition {
	return ColumnDefinition{Name: constants.FieldUserID, Type: TypeID, ReferenceTo: constants.TableUserProfiles, OnDelete: "CASCADE"}
}

func ref(name, table string) ColumnDefinition {
	return ColumnDefinition{Name: name, Type: TypeID, Nullable: true, ReferenceTo: table, OnDelete: "SET NULL"}
}

func str(name string, size int, nullable bool) ColumnDefinition {
	return ColumnDefinition{Name: name, Type: TypeString, Size: size, Nullable: nullable}
}

func text(name string) ColumnDefinition {
	return ColumnDefinition{Name: name, Type: TypeText, Nullable: true}
}

func createdAt() ColumnDefinition {
	return ColumnDefinition{Name: constants.FieldCreatedAt, Type: TypeTimestamp}
}

func updatedAt() ColumnDefinition {
	return ColumnDefinition{Name: constants.FieldUpdatedAt, Type: TypeTimestamp}
}

// CRMTables returns the table definitions in creation order.
func CRMTables() []TableDefinition {
	return []TableDefinition{
		{
			TableName:   constants.TableUserProfiles,
			Description: "Application users; id matches the identity provider subject",
			Columns: []ColumnDefinition{
				id(),
				{Name: "email", Type: TypeString, Size: 254, Unique: true},
				str("full_name", 200, true),
				{Name: "role", Type: TypeString, Size: 20, Default: "'sales_rep'",
					Options: []string{constants.RoleAdmin, constants.RoleManager, constants.RoleSalesRep}},
				str("avatar_url", 2048, true),
				{Name: "password_hash", Type: TypeString, Size: 100, Default: "''"},
				createdAt(), updatedAt(),
			},
		},
		{
			TableName:   constants.TableCompanies,
			Description: "Organizations contacts and deals belong to",
			Columns: []ColumnDefinition{
				id(), owner(),
				str("name", 200, false),
				str("industry", 100, true),
				str("website", 500, true),
				str("phone", 50, true),
				str("address", 500, true),
				str("size", 50, true),
				text("notes"),
				createdAt(), updatedAt(),
			},
			Indices: []IndexDefinition{{Columns: []string{"user_id", "name"}}},
		},
		{
			TableName:   constants.TableContacts,
			Description: "People at companies",
			Columns: []ColumnDefinition{
				id(), owner(),
				ref("company_id", constants.TableCompanies),
				{Name: "first_name", Type: TypeString, Size: 100, Default: "''"},
				{Name: "last_name", Type: TypeString, Size: 100, Default: "''"},
				str("email", 254, true),
				str("phone", 50, true),
				str("job_title", 100, true),
				{Name: "status", Type: TypeString, Size: 20, Default: "'lead'",
					Options: []string{"lead", "prospect", "customer", "inactive"}},
				text("notes"),
				createdAt(), updatedAt(),
			},
			Indices: []IndexDefinition{
				{Columns: []string{"user_id", "created_at"}},
				{Columns: []string{"company_id"}},
			},
		},
		{
			TableName:   constants.TableDeals,
			Description: "Sales opportunities on the pipeline",
			Columns: []ColumnDefinition{
				id(), owner(),
				ref("contact_id", constants.TableContacts),
				ref("company_id", constants.TableCompanies),
				str("title", 200, false),
				{Name: "value", Type: TypeMoney, Default: "0"},
				{Name: "currency", Type: TypeString, Size: 3, Default: "'USD'"},
				{Name: "stage", Type: TypeString, Size: 20, Default: "'lead'",
					Options: []string{"lead", "qualified", "proposal", "negotiation", "closed_won", "closed_lost"}},
				{Name: "probability", Type: TypeInt, Default: "10"},
				{Name: "expected_close_date", Type: TypeDate, Nullable: true},
				{Name: "closed_at", Type: TypeTimestamp, Nullable: true},
				text("description"),
				createdAt(), updatedAt(),
			},
			Indices: []IndexDefinition{
				{Columns: []string{"user_id", "stage"}},
				{Columns: []string{"contact_id"}},
				{Columns: []string{"company_id"}},
			},
		},
		{
			TableName:   constants.TableActivities,
			Description: "Timeline entries: calls, emails, meetings, notes, stage changes",
			Columns: []ColumnDefinition{
				id(), owner(),
				{Name: "type", Type: TypeString, Size: 20,
					Options: []string{"call", "email", "meeting", "note", "task", "stage_change"}},
				str("subject", 300, false),
				text("description"),
				ref("contact_id", constants.TableContacts),
				ref("company_id", constants.TableCompanies),
				ref("deal_id", constants.TableDeals),
				{Name: "occurred_at", Type: TypeTimestamp},
				{Name: "duration_minutes", Type: TypeInt, Nullable: true},
				createdAt(),
			},
			Indices: []IndexDefinition{
				{Columns: []string{"user_id", "occurred_at"}},
				{Columns: []string{"contact_id"}},
				{Columns: []string{"company_id"}},
				{Columns: []string{"deal_id"}},
			},
		},
		{
			TableName:   constants.TableTasks,
			Description: "To-dos with due dates",
			Columns: []ColumnDefinition{
				id(), owner(),
				str("title", 300, false),
				text("description"),
				{Name: "due_date", Type: TypeTimestamp, Nullable: true},
				{Name: "priority", Type: TypeString, Size: 10, Default: "'medium'",
					Options: []string{"low", "medium", "high"}},
				{Name: "completed", Type: TypeBool, Default: "FALSE"},
				{Name: "completed_at", Type: TypeTimestamp, Nullable: true},
				ref("contact_id", constants.TableContacts),
				ref("deal_id", constants.TableDeals),
				createdAt(), updatedAt(),
			},
			Indices: []IndexDefinition{{Columns: []string{"user_id", "completed", "due_date"}}},
		},
		{
			TableName:   constants.TableDocuments,
			Description: "Metadata for blobs in object storage",
			Columns: []ColumnDefinition{
				id(), owner(),
				str("name", 255, false),
				{Name: "storage_key", Type: TypeString, Size: 500, Unique: true},
				str("mime_type", 100, false),
				{Name: "size_bytes", Type: TypeBigInt, Default: "0"},
				ref("contact_id", constants.TableContacts),
				ref("company_id", constants.TableCompanies),
				ref("deal_id", constants.TableDeals),
				createdAt(),
			},
			Indices: []IndexDefinition{{Columns: []string{"user_id", "created_at"}}},
		},
	}
}

// Lookup returns the definition of table name.
func Lookup(name string) (TableDefinition, bool) {
	for _, t := range CRMTables() {
		if t.TableName == name {
			return t, true
		}
	}
	return TableDefinition{}, false
}
