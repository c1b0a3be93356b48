package query

import "strings"

type SortKey struct {
	Field Field
	Desc  bool
}

func parseSort(doc []member, fields FieldSet) ([]SortKey, error) {
	keys := make([]SortKey, 0, len(doc))
	for _, m := range doc {
		field, ok := fields.Lookup(m.Key)
		if !ok {
			return nil, invalidf("cannot sort on unknown field %q", m.Key)
		}
		if field.Kind == KindIDSet {
			return nil, invalidf("cannot sort on %q", field.Name)
		}
		desc, err := sortDirection(m.Value)
		if err != nil {
			return nil, invalidf("invalid sort direction for %q", field.Name)
		}
		keys = append(keys, SortKey{Field: field, Desc: desc})
	}
	return keys, nil
}

func sortDirection(raw any) (bool, error) {
	if n, ok := number(raw); ok {
		switch n {
		case 1:
			return false, nil
		case -1:
			return true, nil
		}
		return false, ErrInvalidQuery
	}
	s, ok := raw.(string)
	if !ok {
		return false, ErrInvalidQuery
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "asc", "ascending":
		return false, nil
	case "-1", "desc", "descending":
		return true, nil
	}
	return false, ErrInvalidQuery
}
