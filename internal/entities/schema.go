package entities

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Schema reads entities from YAML schema files. A document is either a
// single entity or a list under "entities":
//
//	entities:
//	  - name: User
//	    fillable: [name, email, password]
//	    casts: {password: hashed}
//	    hidden: [password]
//	    accessors: {email: "return decrypt($value);"}
//
// Multiple documents per file are allowed.
type Schema struct{}

type schemaEntity struct {
	Name      string            `yaml:"name"`
	Source    string            `yaml:"source"`
	Fillable  []string          `yaml:"fillable"`
	Casts     map[string]string `yaml:"casts"`
	Hidden    []string          `yaml:"hidden"`
	Accessors map[string]string `yaml:"accessors"`
}

type schemaDocument struct {
	schemaEntity `yaml:",inline"`
	Entities     []schemaEntity `yaml:"entities"`
}

func (Schema) Introspect(path string, src []byte) ([]Entity, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	var out []Entity
	for {
		var doc schemaDocument
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if doc.Name != "" {
			out = append(out, doc.schemaEntity.entity(path))
		}
		for _, se := range doc.Entities {
			if se.Name == "" {
				return nil, fmt.Errorf("parse %s: entity without name", path)
			}
			out = append(out, se.entity(path))
		}
	}
	return out, nil
}

// entity converts a schema entry. Schemas declare protection explicitly
// through casts, hidden and accessors, so no source text is kept.
func (se schemaEntity) entity(path string) Entity {
	source := se.Source
	if source == "" {
		source = path
	}
	return Entity{
		Name:      se.Name,
		Source:    source,
		Fillable:  se.Fillable,
		Casts:     se.Casts,
		Hidden:    se.Hidden,
		Accessors: se.Accessors,
	}
}
