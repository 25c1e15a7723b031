package models

import "encoding/json"

// NullInt64 is a patch field that tells an absent value apart from an
// explicit null. Set reports the field was given; Valid that it held a
// number. A Set field that is not Valid clears the stored value.
type NullInt64 struct {
	Int64 int64
	Valid bool
	Set   bool
}

func SetInt64(v int64) NullInt64 {
	return NullInt64{Int64: v, Valid: true, Set: true}
}

func ClearInt64() NullInt64 {
	return NullInt64{Set: true}
}

func (n *NullInt64) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = ClearInt64()
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = SetInt64(v)
	return nil
}

func (n NullInt64) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Int64)
}

func (n NullInt64) value() interface{} {
	if !n.Valid {
		return nil
	}
	return n.Int64
}
