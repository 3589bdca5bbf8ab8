package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereClauseEmpty(t *testing.T) {
	var args []any
	assert.Equal(t, "", Filters{}.whereClause(&args))
	assert.Empty(t, args)
}

func TestWhereClauseSingle(t *testing.T) {
	var args []any
	clause := Filters{Eq("cluster_id", "abc")}.whereClause(&args)
	assert.Equal(t, " WHERE cluster_id = $1", clause)
	assert.Equal(t, []any{"abc"}, args)
}

func TestWhereClauseComposed(t *testing.T) {
	var args []any
	clause := Filters{
		Eq("status", "pending"),
		NotNull("revision_id"),
		Lte("execute_at", "2024-01-01"),
	}.whereClause(&args)
	assert.Equal(t, " WHERE status = $1 AND revision_id IS NOT NULL AND execute_at <= $2", clause)
	assert.Equal(t, []any{"pending", "2024-01-01"}, args)
}

func TestWhereClauseIn(t *testing.T) {
	var args []any
	clause := Filters{In("cluster_id", []any{"a", "b", "c"})}.whereClause(&args)
	assert.Equal(t, " WHERE cluster_id IN ($1, $2, $3)", clause)
	assert.Equal(t, []any{"a", "b", "c"}, args)
}

func TestWhereClauseNumberingContinues(t *testing.T) {
	args := []any{"already-there"}
	clause := Filters{Eq("name", "x"), EqFold("kind", "Kafka")}.whereClause(&args)
	assert.Equal(t, " WHERE name = $2 AND LOWER(kind) = LOWER($3)", clause)
	assert.Equal(t, []any{"already-there", "x", "Kafka"}, args)
}

func TestWhereClauseContains(t *testing.T) {
	var args []any
	clause := Filters{Contains("name", "kafka"), IsNull("env_id")}.whereClause(&args)
	assert.Equal(t, " WHERE name ILIKE $1 AND env_id IS NULL", clause)
	assert.Equal(t, []any{"%kafka%"}, args)
}
