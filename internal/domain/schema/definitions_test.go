package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/pkg/constants"
)

func TestCRMTables_MatchConstants(t *testing.T) {
	tables := CRMTables()
	require.Len(t, tables, len(constants.CRMTables))
	for i, def := range tables {
		assert.Equal(t, constants.CRMTables[i], def.TableName)
		assert.True(t, def.HasColumn("id"), def.TableName)
		assert.True(t, def.HasColumn("created_at"), def.TableName)
		assert.Equal(t, constants.IsOwnedTable(def.TableName), def.HasColumn("user_id"), def.TableName)
	}
}

func TestReferencesPointBackwards(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range CRMTables() {
		for _, col := range def.Columns {
			if col.ReferenceTo != "" {
				assert.True(t, seen[col.ReferenceTo], "%s.%s references %s before it is created", def.TableName, col.Name, col.ReferenceTo)
			}
		}
		seen[def.TableName] = true
	}
}

func TestLookup(t *testing.T) {
	deals, ok := Lookup("deals")
	require.True(t, ok)
	assert.True(t, deals.HasColumn("probability"))
	assert.False(t, deals.HasColumn("password_hash"))

	_, ok = Lookup("invoices")
	assert.False(t, ok)
}
