package audit

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// formScope is the item scope of changes made to the entity itself rather
// than to one of its checklist items.
const formScope = "form"

// ChangeKey identifies one logical change for deduplication.
type ChangeKey struct {
	Scope string
	Field string
	Old   *string
	New   *string
}

// NewChangeKey derives the key of a candidate change. A nil or empty item
// scopes the change to the whole entity.
func NewChangeKey(itemID *string, fieldName string, oldValue, newValue *string) ChangeKey {
	scope := formScope
	if itemID != nil && *itemID != "" {
		scope = *itemID
	}
	return ChangeKey{Scope: scope, Field: fieldName, Old: oldValue, New: newValue}
}

// String renders the key as a JSON array so that component boundaries can
// never be confused and nil values always encode as null.
func (k ChangeKey) String() string {
	encoded, _ := json.Marshal([]*string{&k.Scope, &k.Field, k.Old, k.New})
	return string(encoded)
}

// Digest is a compact hash of the key for log fields. Equality checks use
// String, never Digest.
func (k ChangeKey) Digest() string {
	return strconv.FormatUint(xxhash.Sum64String(k.String()), 16)
}

// Fingerprint is shorthand for NewChangeKey(...).String().
func Fingerprint(itemID *string, fieldName string, oldValue, newValue *string) string {
	return NewChangeKey(itemID, fieldName, oldValue, newValue).String()
}
