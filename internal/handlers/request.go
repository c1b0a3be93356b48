package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"task-tracker/backend/internal/query"
)

var errBodyNotObject = errors.New("request body must be an object")

// decodeBody reads a JSON or form encoded body into an untyped map. Numbers
// in JSON stay json.Number. Repeated form keys and keys ending in "[]" become
// arrays.
func decodeBody(c *gin.Context) (map[string]any, error) {
	switch c.ContentType() {
	case binding.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
		return formValues(c.Request.PostForm), nil
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
		return formValues(c.Request.MultipartForm.Value), nil
	}

	if c.Request.Body == nil {
		return map[string]any{}, nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, errBodyNotObject
	}
	return obj, nil
}

func formValues(values url.Values) map[string]any {
	merged := make(map[string][]string, len(values))
	lists := make(map[string]bool)
	for key, vals := range values {
		name, isList := strings.CutSuffix(key, "[]")
		merged[name] = append(merged[name], vals...)
		if isList {
			lists[name] = true
		}
	}

	body := make(map[string]any, len(merged))
	for name, vals := range merged {
		if !lists[name] && len(vals) == 1 {
			body[name] = vals[0]
			continue
		}
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		body[name] = list
	}
	return body
}

// listParams collects where/sort/select/skip/limit/count from the query
// string. where and friends may be given as JSON text or with bracket syntax
// such as where[name]=x.
func listParams(c *gin.Context) query.Params {
	return query.Params{
		Where:  queryValue(c, "where"),
		Sort:   queryValue(c, "sort"),
		Select: queryValue(c, "select"),
		Skip:   queryValue(c, "skip"),
		Limit:  queryValue(c, "limit"),
		Count:  queryValue(c, "count"),
	}
}

func queryValue(c *gin.Context, name string) any {
	if v, ok := c.GetQuery(name); ok {
		return v
	}
	if m, ok := c.GetQueryMap(name); ok {
		return m
	}
	return nil
}
