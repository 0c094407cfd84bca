package store

import (
	"bytes"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Record is one JSON object of a collection. Numbers are float64, arrays are []any, objects are map[string]any.
type Record map[string]any

// IDField is the name of the key holding a record's id.
const IDField = "id"

// ID returns the record id as a decimal string. Numeric ids (as written by older json-server files) are
// converted. It returns "" when the record has no usable id.
func (r Record) ID() string {
	switch v := r[IDField].(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return cloneValue(map[string]any(r)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Record:
		return Record(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Without returns a shallow copy of r minus the given keys.
func (r Record) Without(keys ...string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		if !slices.Contains(keys, k) {
			out[k] = v
		}
	}
	return out
}

// ParseID parses a decimal record id. Only positive integers in canonical form are valid: "01" and "+1"
// name no record.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 || FormatID(n) != id {
		return 0, ErrInvalidID.WithCause(fmt.Errorf("%q", id))
	}
	return n, nil
}

// FormatID formats a numeric id.
func FormatID(n int64) string {
	return strconv.FormatInt(n, 10)
}

// NextID returns max numeric id + 1 over records, or "1" when there is none. Non-numeric ids count as 0.
// Deleting the record holding the maximum id lets that id be handed out again.
func NextID(records []Record) string {
	var maxID int64
	for _, r := range records {
		if n, err := strconv.ParseInt(r.ID(), 10, 64); err == nil && n > maxID {
			maxID = n
		}
	}
	return FormatID(maxID + 1)
}

// SortByID orders records by numeric id, non-numeric ids last.
func SortByID(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		ai, aerr := strconv.ParseInt(a.ID(), 10, 64)
		bi, berr := strconv.ParseInt(b.ID(), 10, 64)
		switch {
		case aerr != nil && berr != nil:
			return 0
		case aerr != nil:
			return 1
		case berr != nil:
			return -1
		}
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	})
}

// Marshal encodes a record deterministically (sorted keys) for persistence.
func Marshal(r Record) ([]byte, error) {
	return json.Marshal(r, json.Deterministic(true))
}

// Unmarshal decodes a persisted record and normalizes its id to a string.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("record is null")
	}
	if id := r.ID(); id != "" {
		r[IDField] = id
	}
	return r, nil
}

// Decode converts a record into a typed value through its JSON form.
func Decode(r Record, v any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Encode converts a typed value into a record through its JSON form.
func Encode(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// MarshalDocument encodes collections as one indented JSON object, the layout of a db.json file.
// Collection keys follow the order given in names.
func MarshalDocument(names []string, doc map[string][]Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf, jsontext.WithIndent("  "))

	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := enc.WriteToken(jsontext.String(name)); err != nil {
			return nil, err
		}
		records := doc[name]
		if records == nil {
			records = []Record{}
		}
		if err := json.MarshalEncode(enc, records, json.Deterministic(true)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
	}
	if err := enc.WriteToken(jsontext.EndObject); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// UnmarshalDocument decodes a db.json style document. Keys that are not arrays of objects are rejected.
func UnmarshalDocument(data []byte) (map[string][]Record, error) {
	var raw map[string][]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for name, records := range raw {
		for i, r := range records {
			if r == nil {
				return nil, fmt.Errorf("decode document: %s[%d] is null", name, i)
			}
			if id := r.ID(); id != "" {
				r[IDField] = id
			}
		}
	}
	return raw, nil
}
