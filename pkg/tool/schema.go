package tool

// Kind enumerates the value kinds an argument may declare.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

var validKinds = map[Kind]bool{
	KindString:  true,
	KindNumber:  true,
	KindInteger: true,
	KindBoolean: true,
	KindObject:  true,
	KindArray:   true,
}

// Field describes one named argument of a tool.
type Field struct {
	Name        string  `json:"name"`
	Kind        Kind    `json:"kind"`
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required"`
	Fields      []Field `json:"fields,omitempty"` // nested fields for KindObject
	Elem        *Field  `json:"elem,omitempty"`   // element shape for KindArray
}

// Schema describes the argument shape of a tool. Unknown arguments are
// rejected unless AllowExtra is set.
type Schema struct {
	Fields     []Field `json:"fields"`
	AllowExtra bool    `json:"allow_extra,omitempty"`
}

// jsonSchema renders the schema description as a JSON Schema document
// suitable for compilation with gojsonschema.
func (s Schema) jsonSchema() map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for _, field := range s.Fields {
		properties[field.Name] = field.jsonSchema()
		if field.Required {
			required = append(required, field.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": s.AllowExtra,
		"properties":           properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func (f Field) jsonSchema() map[string]interface{} {
	doc := map[string]interface{}{
		"type": string(f.Kind),
	}
	if f.Description != "" {
		doc["description"] = f.Description
	}

	switch f.Kind {
	case KindObject:
		if len(f.Fields) > 0 {
			properties := make(map[string]interface{})
			required := []string{}
			for _, nested := range f.Fields {
				properties[nested.Name] = nested.jsonSchema()
				if nested.Required {
					required = append(required, nested.Name)
				}
			}
			doc["properties"] = properties
			if len(required) > 0 {
				doc["required"] = required
			}
		}
	case KindArray:
		if f.Elem != nil {
			doc["items"] = f.Elem.jsonSchema()
		}
	}

	return doc
}
