package query

import (
	"encoding/json"
	"sort"

	"icra-sorgu/internal/models"
)

// Shape tags the outcome of payload normalization.
type Shape int

const (
	// ShapeUnknown means no recognized inner shape was found; Raw holds
	// the payload unchanged.
	ShapeUnknown Shape = iota
	// ShapeRecord is a flat key/value field set (address, tax, utility
	// and similar lookups).
	ShapeRecord
	// ShapeList is an array of structured records, possibly with nested
	// child collections (vehicles with encumbrances, bank accounts,
	// creditor files).
	ShapeList
)

// maxDescent bounds the defensive search through wrapper objects. The
// registry nests the meaningful data under up to two or three
// unpredictable keys (external case number, then a debtor-name
// composite) before the actual field set.
const maxDescent = 3

// Normalized is the tagged result of payload normalization. Exactly
// one of Record or Records is populated for the known shapes; Raw is
// always the original payload.
type Normalized struct {
	Shape   Shape
	Record  map[string]interface{}
	Records []map[string]interface{}
	Raw     json.RawMessage
}

// Marshal re-encodes the normalized form, or returns the raw payload
// unchanged when no shape was recognized.
func (n Normalized) Marshal() json.RawMessage {
	switch n.Shape {
	case ShapeRecord:
		if data, err := json.Marshal(n.Record); err == nil {
			return data
		}
	case ShapeList:
		if data, err := json.Marshal(n.Records); err == nil {
			return data
		}
	}
	return n.Raw
}

// Normalize digs the expected inner shape for the query type out of
// the payload. It never fails: when the expected shape is not found
// the payload is passed through unchanged under ShapeUnknown.
func Normalize(queryType models.QueryType, raw json.RawMessage) Normalized {
	out := Normalized{Shape: ShapeUnknown, Raw: raw}
	if len(raw) == 0 {
		return out
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return out
	}

	switch queryType.Shape() {
	case models.ShapeList:
		if records, ok := findRecordList(decoded, maxDescent); ok {
			out.Shape = ShapeList
			out.Records = records
		}
	case models.ShapeRecord:
		if record, ok := findRecord(decoded, maxDescent); ok {
			out.Shape = ShapeRecord
			out.Record = record
		}
	}
	return out
}

// findRecordList locates the first array of objects, descending
// through wrapper objects in stable key order.
func findRecordList(v interface{}, depth int) ([]map[string]interface{}, bool) {
	if records, ok := asRecordList(v); ok {
		return records, true
	}
	if depth == 0 {
		return nil, false
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	for _, k := range sortedKeys(obj) {
		if records, ok := findRecordList(obj[k], depth-1); ok {
			return records, true
		}
	}
	return nil, false
}

// findRecord unwraps single-key wrapper objects until it reaches a
// field set, i.e. an object carrying at least one scalar value.
func findRecord(v interface{}, depth int) (map[string]interface{}, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	if hasScalarField(obj) {
		return obj, true
	}
	if depth == 0 || len(obj) != 1 {
		return nil, false
	}
	for _, inner := range obj {
		return findRecord(inner, depth-1)
	}
	return nil, false
}

// asRecordList accepts a non-empty array whose elements are objects.
func asRecordList(v interface{}) ([]map[string]interface{}, bool) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, false
	}
	records := make([]map[string]interface{}, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, false
		}
		records = append(records, obj)
	}
	return records, true
}

func hasScalarField(obj map[string]interface{}) bool {
	for _, v := range obj {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
		default:
			return true
		}
	}
	return false
}

func sortedKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
