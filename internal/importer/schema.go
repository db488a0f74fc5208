package importer

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mcmassia/nexusdrive/internal/models"
)

const dateKey = "date"

var creationKeys = map[string]struct{}{
	"created":       {},
	"created_at":    {},
	"createdat":     {},
	"creation_date": {},
	"date_created":  {},
}

var listKeys = map[string]struct{}{
	"aliases":    {},
	"authors":    {},
	"categories": {},
	"keywords":   {},
}

// InferPropertyType guesses a property type from its key alone.
func InferPropertyType(key string) models.PropertyType {
	k := strings.ToLower(strings.TrimSpace(key))
	if strings.Contains(k, "date") || strings.Contains(k, "fecha") {
		return models.PropertyDate
	}
	if _, ok := creationKeys[k]; ok {
		return models.PropertyDate
	}
	if k == "tags" {
		return models.PropertyMultiselect
	}
	if _, ok := listKeys[k]; ok {
		return models.PropertyMultiselect
	}
	return models.PropertyText
}

// Label upper-cases the first rune of key.
func Label(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

// InferSchema builds a schema for typ from the metadata keys observed on its
// documents. The result always defines a date property.
func InferSchema(typ string, keys []string) *models.TypeSchema {
	s := &models.TypeSchema{Type: typ}
	for _, k := range keys {
		if k == "" || s.HasKey(k) {
			continue
		}
		s.Properties = append(s.Properties, models.PropertyDefinition{
			Key:   k,
			Label: Label(k),
			Type:  InferPropertyType(k),
		})
	}
	if !s.HasKey(dateKey) {
		s.Properties = append(s.Properties, models.PropertyDefinition{
			Key:   dateKey,
			Label: Label(dateKey),
			Type:  models.PropertyDate,
		})
	}
	return s
}

// MergeSchema returns a copy of existing extended with the properties of
// inferred whose keys it lacks. Existing definitions are never changed or
// removed. added reports how many properties were appended.
func MergeSchema(existing, inferred *models.TypeSchema) (merged *models.TypeSchema, added int) {
	merged = &models.TypeSchema{
		Type:       existing.Type,
		Color:      existing.Color,
		Properties: append([]models.PropertyDefinition(nil), existing.Properties...),
	}
	for _, p := range inferred.Properties {
		if merged.HasKey(p.Key) {
			continue
		}
		merged.Properties = append(merged.Properties, p)
		added++
	}
	return merged, added
}

// RandomColor returns a random 6-hex-digit color.
func RandomColor() string {
	return fmt.Sprintf("%06x", rand.IntN(1<<24))
}

// typeKeys accumulates metadata keys per type in first-seen order.
type typeKeys struct {
	types []string
	keys  map[string][]string
	seen  map[string]map[string]struct{}
}

func newTypeKeys() *typeKeys {
	return &typeKeys{keys: make(map[string][]string), seen: make(map[string]map[string]struct{})}
}

func (t *typeKeys) add(typ string, keys []string) {
	seen, ok := t.seen[typ]
	if !ok {
		seen = make(map[string]struct{})
		t.seen[typ] = seen
		t.types = append(t.types, typ)
	}
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		t.keys[typ] = append(t.keys[typ], k)
	}
}
