package apiclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Fields are request parameters, sent as a JSON object or a form body.
type Fields map[string]any

const formContentType = "application/x-www-form-urlencoded"

func encodeJSON(fields Fields) ([]byte, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode json fields: %w", err)
	}
	return b, nil
}

// Repeated is a field value sent as the same form key once per element
// (a=x&a=y) instead of indexed brackets. In JSON mode it is an array.
type Repeated []string

// formPairs keeps encoded pairs in emission order.
type formPairs []string

func (p *formPairs) add(key, value string) {
	*p = append(*p, url.QueryEscape(key)+"="+url.QueryEscape(value))
}

// encodeForm renders fields as a urlencoded form. Nested maps and slices use
// bracket keys (a[b]=1, a[0]=x), nil values are skipped and bools become 1/0.
// Top-level and map keys are sorted; list elements keep their index order.
func encodeForm(fields Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var pairs formPairs
	for _, k := range keys {
		flattenFormValue(&pairs, k, fields[k])
	}
	return strings.Join(pairs, "&")
}

func flattenFormValue(pairs *formPairs, key string, v any) {
	if v == nil {
		return
	}
	switch val := v.(type) {
	case string:
		pairs.add(key, val)
		return
	case Repeated:
		for _, item := range val {
			pairs.add(key, item)
		}
		return
	case bool:
		if val {
			pairs.add(key, "1")
		} else {
			pairs.add(key, "0")
		}
		return
	case json.Number:
		pairs.add(key, val.String())
		return
	case float64:
		pairs.add(key, strconv.FormatFloat(val, 'f', -1, 64))
		return
	case float32:
		pairs.add(key, strconv.FormatFloat(float64(val), 'f', -1, 32))
		return
	case fmt.Stringer:
		pairs.add(key, val.String())
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprint(iter.Key().Interface())
			keys = append(keys, k)
			byKey[k] = iter.Value()
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenFormValue(pairs, key+"["+k+"]", byKey[k].Interface())
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			pairs.add(key, string(rv.Bytes()))
			return
		}
		for i := 0; i < rv.Len(); i++ {
			flattenFormValue(pairs, key+"["+strconv.Itoa(i)+"]", rv.Index(i).Interface())
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return
		}
		flattenFormValue(pairs, key, rv.Elem().Interface())
	default:
		pairs.add(key, fmt.Sprint(v))
	}
}

// appendQuery appends fields to endpoint as a query string, using & when the
// endpoint already carries one.
func appendQuery(endpoint string, fields Fields) string {
	if len(fields) == 0 {
		return endpoint
	}
	query := encodeForm(fields)
	if query == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + query
}
