package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint(str("item-1"), "comments", str("old"), str("new"))
	b := Fingerprint(str("item-1"), "comments", str("old"), str("new"))
	assert.Equal(t, a, b)
}

func TestFingerprintScopesMissingItemToForm(t *testing.T) {
	nilItem := Fingerprint(nil, "status", nil, str("pass"))
	emptyItem := Fingerprint(str(""), "status", nil, str("pass"))
	formItem := Fingerprint(str("form"), "status", nil, str("pass"))

	assert.Equal(t, nilItem, emptyItem)
	assert.Equal(t, nilItem, formItem)
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	base := Fingerprint(str("item-1"), "comments", str("a"), str("b"))
	tests := []struct {
		name string
		fp   string
	}{
		{name: "other item", fp: Fingerprint(str("item-2"), "comments", str("a"), str("b"))},
		{name: "other field", fp: Fingerprint(str("item-1"), "status", str("a"), str("b"))},
		{name: "swapped values", fp: Fingerprint(str("item-1"), "comments", str("b"), str("a"))},
		{name: "nil old", fp: Fingerprint(str("item-1"), "comments", nil, str("b"))},
		{name: "empty old", fp: Fingerprint(str("item-1"), "comments", str(""), str("b"))},
		{name: "boundary shift", fp: Fingerprint(str("item-1c"), "omments", str("a"), str("b"))},
	}
	seen := map[string]string{base: "base"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.fp)
			_, dup := seen[tt.fp]
			assert.False(t, dup)
			seen[tt.fp] = tt.name
		})
	}
}

func TestFingerprintNilValuesCollide(t *testing.T) {
	assert.Equal(t,
		Fingerprint(nil, "comments", nil, str("x")),
		Fingerprint(nil, "comments", nil, str("x")))
	assert.Equal(t, `["form","comments",null,"x"]`, Fingerprint(nil, "comments", nil, str("x")))
}

func TestChangeKeyDigestIsStable(t *testing.T) {
	key := NewChangeKey(nil, "status", str("incomplete-in-progress"), str("pass"))
	assert.Equal(t, key.Digest(), NewChangeKey(str(""), "status", str("incomplete-in-progress"), str("pass")).Digest())
	assert.NotEmpty(t, key.Digest())
}
