package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("scan: %w", sql.ErrNoRows)), ErrNotFound)

	lock := mapError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	assert.ErrorIs(t, lock, ErrLockTimeout)
	var me *mysql.MySQLError
	assert.True(t, errors.As(lock, &me), "driver error stays reachable")

	assert.ErrorIs(t, mapError(&mysql.MySQLError{Number: 1213}), ErrLockTimeout)
	assert.ErrorIs(t, mapError(&mysql.MySQLError{Number: 1062}), ErrDuplicate)

	other := &mysql.MySQLError{Number: 1146}
	assert.Equal(t, error(other), mapError(other))
}
