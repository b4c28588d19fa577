package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChange(t *testing.T) {
	c := NewChange(Update, "deals", "u1", "d1", map[string]interface{}{"stage": "proposal"})
	assert.Equal(t, RecordChanged, c.Event)
	assert.JSONEq(t, `{"stage":"proposal"}`, string(c.Record))
	assert.False(t, c.At.IsZero())

	raw, err := json.Marshal(NewChange(Delete, "deals", "u1", "d1", nil))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"record"`)
	assert.Contains(t, string(raw), `"type":"DELETE"`)
}
