package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementsSplitsSchema(t *testing.T) {
	stmts := Statements()
	assert.Len(t, stmts, 12)
	for _, s := range stmts {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS"), s)
	}
}

func TestSchemaEnforcesActiveOccupantUniqueness(t *testing.T) {
	assert.Contains(t, schema, "UNIQUE KEY uq_event_active_player (event_id, active_player_id)")
}
