package models

// PropertyType is the declared type of a schema property.
type PropertyType string

const (
	PropertyText        PropertyType = "text"
	PropertyNumber      PropertyType = "number"
	PropertyDate        PropertyType = "date"
	PropertyMultiselect PropertyType = "multiselect"
	PropertySelect      PropertyType = "select"
	PropertyDocument    PropertyType = "document"
	PropertyDocuments   PropertyType = "documents"
)

// PropertyDefinition declares one property of a type schema.
type PropertyDefinition struct {
	Key          string       `json:"key"`
	Label        string       `json:"label"`
	Type         PropertyType `json:"type"`
	Required     bool         `json:"required"`
	DefaultValue string       `json:"default_value,omitempty"`
}

// TypeSchema is the set of properties defined for one object type.
type TypeSchema struct {
	Type       string               `json:"type"`
	Color      string               `json:"color"`
	Properties []PropertyDefinition `json:"properties"`
}

// Property returns the definition for key, if any.
func (s *TypeSchema) Property(key string) (PropertyDefinition, bool) {
	for _, p := range s.Properties {
		if p.Key == key {
			return p, true
		}
	}
	return PropertyDefinition{}, false
}

// HasKey reports whether the schema defines key.
func (s *TypeSchema) HasKey(key string) bool {
	_, ok := s.Property(key)
	return ok
}

// HasType reports whether any property has type t.
func (s *TypeSchema) HasType(t PropertyType) bool {
	for _, p := range s.Properties {
		if p.Type == t {
			return true
		}
	}
	return false
}
