package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

var errNotObject = errors.New("not an object")

// member is one top-level key of a parsed document, kept in source order.
type member struct {
	Key   string
	Value any
}

// parseDocument accepts either an already structured object or its textual
// encoding. Text is parsed strictly first; if that fails, single quotes are
// turned into double quotes and comments or trailing commas are stripped
// before a second attempt. present is false when there is nothing to parse.
func parseDocument(raw any) (doc []member, present bool, err error) {
	switch v := raw.(type) {
	case nil:
		return nil, false, nil
	case map[string]any:
		return sortedMembers(v), true, nil
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return sortedMembers(m), true, nil
	case []byte:
		return parseText(string(v))
	case string:
		return parseText(v)
	default:
		return nil, true, fmt.Errorf("unsupported type %T", raw)
	}
}

func parseText(text string) ([]member, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return nil, false, nil
	}

	doc, err := decodeObject([]byte(text))
	if err == nil {
		return doc, true, nil
	}

	lenient := jsonc.ToJSON([]byte(strings.ReplaceAll(text, "'", `"`)))
	doc, lenientErr := decodeObject(lenient)
	if lenientErr != nil {
		return nil, true, err
	}
	return doc, true, nil
}

func decodeObject(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var doc []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		doc = append(doc, member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	return doc, nil
}

func sortedMembers(m map[string]any) []member {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := make([]member, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, member{Key: k, Value: m[k]})
	}
	return doc
}

func membersToMap(doc []member) map[string]any {
	m := make(map[string]any, len(doc))
	for _, mem := range doc {
		m[mem.Key] = mem.Value
	}
	return m
}
