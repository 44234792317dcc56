package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON разбирает JSONB колонку в dest.
func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("models: неподдерживаемый тип %T для JSONB", src)
	}
}

// valueJSON сериализует значение для записи в JSONB.
func valueJSON(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
