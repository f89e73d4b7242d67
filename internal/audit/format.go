package audit

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// StatusTimeLayout renders status timestamps as e.g. "6/20/2024, 3:04:00 PM".
const StatusTimeLayout = "1/2/2006, 3:04:05 PM"

// Formatter turns raw field values into the display strings stored in the
// change history.
type Formatter struct {
	now func() time.Time
	loc *time.Location
}

// NewFormatter builds a formatter rendering times in loc.
func NewFormatter(now func() time.Time, loc *time.Location) *Formatter {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{now: now, loc: loc}
}

// Format applies the presentation rule for fieldName. Fields without a rule
// pass through unchanged.
func (f *Formatter) Format(fieldName string, oldValue, newValue *string) (*string, *string) {
	switch fieldName {
	case domain.FieldStatus:
		return oldValue, f.formatStatus(newValue)
	case domain.FieldEvidenceFiles:
		return nil, stringPtr(summarizeFiles(oldValue, newValue))
	default:
		return oldValue, newValue
	}
}

func (f *Formatter) formatStatus(newValue *string) *string {
	if newValue == nil {
		return nil
	}
	return stringPtr(fmt.Sprintf("%s (%s)", *newValue, f.now().In(f.loc).Format(StatusTimeLayout)))
}

func summarizeFiles(oldValue, newValue *string) string {
	oldFiles, oldOK := parseFileList(oldValue)
	newFiles, newOK := parseFileList(newValue)
	if !oldOK || !newOK {
		switch {
		case isBlank(oldValue) || isEmptyList(oldValue):
			return "Files attached"
		case isBlank(newValue) || isEmptyList(newValue):
			return "Files removed"
		default:
			return "Files updated"
		}
	}

	switch {
	case len(newFiles) > len(oldFiles):
		added := addedFiles(oldFiles, newFiles)
		if len(added) == 1 {
			return "Added file: " + added[0]
		}
		return fmt.Sprintf("Added %d files: %s", len(added), strings.Join(added, ", "))
	case len(newFiles) < len(oldFiles):
		return fmt.Sprintf("Removed %d file(s)", len(oldFiles)-len(newFiles))
	default:
		return "Files updated"
	}
}

// parseFileList reads a JSON array of file names or file objects. A missing
// value is an empty list.
func parseFileList(value *string) ([]string, bool) {
	if isBlank(value) {
		return nil, true
	}
	raw := strings.TrimSpace(*value)
	if !gjson.Valid(raw) {
		return nil, false
	}
	parsed := gjson.Parse(raw)
	if parsed.Type == gjson.Null {
		return nil, true
	}
	if !parsed.IsArray() {
		return nil, false
	}
	items := parsed.Array()
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, fileName(item))
	}
	return names, true
}

func fileName(item gjson.Result) string {
	if item.Type == gjson.String {
		return item.String()
	}
	for _, key := range []string{"name", "fileName", "file_name", "filename"} {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	if v := item.Get("url"); v.Exists() && v.String() != "" {
		return path.Base(v.String())
	}
	return "file"
}

// addedFiles returns the names present in next but not in prev, counting
// duplicates. Callers only pass a next longer than prev, so the result is
// never empty.
func addedFiles(prev, next []string) []string {
	seen := make(map[string]int, len(prev))
	for _, name := range prev {
		seen[name]++
	}
	var added []string
	for _, name := range next {
		if seen[name] > 0 {
			seen[name]--
			continue
		}
		added = append(added, name)
	}
	return added
}

func isBlank(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}

func isEmptyList(value *string) bool {
	trimmed := strings.TrimSpace(*value)
	return trimmed == "[]" || trimmed == "null"
}

func stringPtr(s string) *string {
	return &s
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
