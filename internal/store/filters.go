package store

import (
	"fmt"
	"strings"
)

type filterOp int

const (
	opEq filterOp = iota
	opEqFold
	opContains
	opIsNull
	opNotNull
	opLte
	opIn
)

// Filter is a single column predicate. Filters compose with AND.
type Filter struct {
	column string
	op     filterOp
	value  any
}

func Eq(column string, value any) Filter { return Filter{column, opEq, value} }
func EqFold(column, value string) Filter { return Filter{column, opEqFold, value} }
func Contains(column, value string) Filter { return Filter{column, opContains, value} }
func IsNull(column string) Filter { return Filter{column, opIsNull, nil} }
func NotNull(column string) Filter { return Filter{column, opNotNull, nil} }
func Lte(column string, value any) Filter { return Filter{column, opLte, value} }
func In(column string, values []any) Filter { return Filter{column, opIn, values} }

type Filters []Filter

// whereClause renders the filters into a WHERE clause, appending bind values
// to args. Returns the empty string when no filters are set.
func (f Filters) whereClause(args *[]any) string {
	if len(f) == 0 {
		return ""
	}
	terms := make([]string, 0, len(f))
	for _, filter := range f {
		switch filter.op {
		case opEq:
			*args = append(*args, filter.value)
			terms = append(terms, fmt.Sprintf("%s = $%d", filter.column, len(*args)))
		case opEqFold:
			*args = append(*args, filter.value)
			terms = append(terms, fmt.Sprintf("LOWER(%s) = LOWER($%d)", filter.column, len(*args)))
		case opContains:
			*args = append(*args, "%"+filter.value.(string)+"%")
			terms = append(terms, fmt.Sprintf("%s ILIKE $%d", filter.column, len(*args)))
		case opIsNull:
			terms = append(terms, filter.column+" IS NULL")
		case opNotNull:
			terms = append(terms, filter.column+" IS NOT NULL")
		case opLte:
			*args = append(*args, filter.value)
			terms = append(terms, fmt.Sprintf("%s <= $%d", filter.column, len(*args)))
		case opIn:
			values := filter.value.([]any)
			placeholders := make([]string, 0, len(values))
			for _, v := range values {
				*args = append(*args, v)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(*args)))
			}
			terms = append(terms, fmt.Sprintf("%s IN (%s)", filter.column, strings.Join(placeholders, ", ")))
		}
	}
	return " WHERE " + strings.Join(terms, " AND ")
}
