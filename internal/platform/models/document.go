package models

import (
	"fmt"
	"strconv"

	"taskhub/internal/pkg/errors"
)

// Document is a loosely typed record as stored by the record provider. Typed
// records are decoded from documents through a decoder bound to the
// document's collection and id so that rejections name the offending record.
type Document map[string]interface{}

// ID returns the document id or "" when absent.
func (d Document) ID() string {
	s, _ := asString(d["id"])
	return s
}

type decoder struct {
	doc        Document
	collection string
	err        error
}

func newDecoder(collection string, doc Document) *decoder {
	return &decoder{doc: doc, collection: collection}
}

func (dec *decoder) fail(field, reason string) {
	if dec.err == nil {
		dec.err = &errors.DecodeError{Collection: dec.collection, ID: dec.doc.ID(), Field: field, Reason: reason}
	}
}

func (dec *decoder) requiredString(field string) string {
	v, ok := dec.doc[field]
	if !ok || v == nil {
		dec.fail(field, "")
		return ""
	}
	s, ok := asString(v)
	if !ok || s == "" {
		dec.fail(field, "")
		return ""
	}
	return s
}

func (dec *decoder) optionalString(field string) string {
	v, ok := dec.doc[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := asString(v)
	if !ok {
		dec.fail(field, fmt.Sprintf("has type %T", v))
	}
	return s
}

func (dec *decoder) nullableString(field string) *string {
	v, ok := dec.doc[field]
	if !ok || v == nil {
		return nil
	}
	s, ok := asString(v)
	if !ok {
		dec.fail(field, fmt.Sprintf("has type %T", v))
		return nil
	}
	return &s
}

func (dec *decoder) requiredInt(field string) int64 {
	v, ok := dec.doc[field]
	if !ok || v == nil {
		dec.fail(field, "")
		return 0
	}
	n, ok := asInt(v)
	if !ok {
		dec.fail(field, fmt.Sprintf("has type %T", v))
	}
	return n
}

func (dec *decoder) optionalInt(field string) int64 {
	v, ok := dec.doc[field]
	if !ok || v == nil {
		return 0
	}
	n, ok := asInt(v)
	if !ok {
		dec.fail(field, fmt.Sprintf("has type %T", v))
	}
	return n
}

func (dec *decoder) nullableInt(field string) *int64 {
	v, ok := dec.doc[field]
	if !ok || v == nil {
		return nil
	}
	n, ok := asInt(v)
	if !ok {
		dec.fail(field, fmt.Sprintf("has type %T", v))
		return nil
	}
	return &n
}

func (dec *decoder) check(field string, valid bool) {
	if !valid {
		dec.fail(field, "has an invalid value")
	}
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	}
	return "", false
}

func asInt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
