package query

import "strings"

// Projection selects which serialised fields of a record are returned. The
// zero value returns every field.
type Projection struct {
	exclude bool
	fields  map[string]bool
}

func (p Projection) IsZero() bool {
	return len(p.fields) == 0
}

func (p Projection) Includes(name string) bool {
	if p.IsZero() {
		return true
	}
	if p.exclude {
		return !p.fields[name]
	}
	return p.fields[name]
}

// Apply filters a serialised record in place and returns it.
func (p Projection) Apply(doc map[string]any) map[string]any {
	if p.IsZero() {
		return doc
	}
	for k := range doc {
		if !p.Includes(k) {
			delete(doc, k)
		}
	}
	return doc
}

func parseProjection(doc []member, fields FieldSet) (Projection, error) {
	var included, excluded []string
	var id *bool

	for _, m := range doc {
		field, ok := fields.Lookup(m.Key)
		if !ok {
			return Projection{}, invalidf("cannot select unknown field %q", m.Key)
		}
		include, err := projectionFlag(m.Value)
		if err != nil {
			return Projection{}, invalidf("invalid selection value for %q", field.Name)
		}
		if field.Name == "_id" {
			id = &include
			continue
		}
		if include {
			included = append(included, field.Name)
		} else {
			excluded = append(excluded, field.Name)
		}
	}

	if len(included) > 0 && len(excluded) > 0 {
		return Projection{}, invalidf("cannot mix inclusion and exclusion in select")
	}

	p := Projection{fields: make(map[string]bool)}
	switch {
	case len(included) > 0:
		for _, name := range included {
			p.fields[name] = true
		}
		if id == nil || *id {
			p.fields["_id"] = true
		}
	case len(excluded) > 0:
		p.exclude = true
		for _, name := range excluded {
			p.fields[name] = true
		}
		if id != nil && !*id {
			p.fields["_id"] = true
		}
	case id != nil:
		p.exclude = !*id
		p.fields["_id"] = true
	}
	return p, nil
}

func projectionFlag(raw any) (bool, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	if n, ok := number(raw); ok {
		return n != 0, nil
	}
	if s, ok := raw.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
	}
	return false, ErrInvalidQuery
}
