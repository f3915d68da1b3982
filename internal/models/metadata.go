package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metadata is the JSON metadata stored next to an indexed chunk
type Metadata map[string]any

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v
		return nil
	case map[string]any:
		*m = Metadata(v)
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("failed to scan metadata: unsupported type %T", value)
	}
}

// Page returns the page number when it is present and numeric
func (m Metadata) Page() (int, bool) {
	v, ok := m["page"]
	if !ok {
		return 0, false
	}
	return CoerceInt(v)
}

// ChunkID returns the chunk id when present as a string
func (m Metadata) ChunkID() (string, bool) {
	s, ok := m["chunk_id"].(string)
	return s, ok && s != ""
}

// Source returns the source label when present as a string
func (m Metadata) Source() (string, bool) {
	s, ok := m["source"].(string)
	return s, ok && s != ""
}

// CoerceInt accepts JSON numbers, Go integers and numeric strings.
func CoerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return coerceFloat(float64(n))
	case float64:
		return coerceFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return coerceFloat(f)
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return coerceFloat(f)
		}
	}
	return 0, false
}

func coerceFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
