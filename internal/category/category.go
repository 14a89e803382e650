// Package category computes the effective display category of a transaction
// and maintains the system-derived middle tier from mapping tables.
//
// Precedence is user_category, then category, then raw_category. The rule is
// written exactly once as a Go function and once as the equivalent SQL
// expression so that in-memory display paths and pushed-down aggregate
// queries can never drift apart.
package category

import "dlev/finsync/internal/models"

// EffectiveSQL is the precedence rule as a SQL expression over the
// transactions table, for use in aggregate queries that must not materialize
// every row.
const EffectiveSQL = `CASE
	WHEN user_category <> '' THEN user_category
	WHEN category <> '' THEN category
	ELSE raw_category
END`

// Effective returns the category actually shown to the user after applying
// override precedence.
func Effective(t models.Transaction) string {
	if t.UserCategory != "" {
		return t.UserCategory
	}
	if t.Category != "" {
		return t.Category
	}
	return t.RawCategory
}
