package repository

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"scholarflow/internal/errs"
)

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func encodePayload(payload map[string]any) (datatypes.JSON, error) {
	if len(payload) == 0 {
		return datatypes.JSON("{}"), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(err, "encode payload")
	}
	return datatypes.JSON(raw), nil
}

func decodePayload(raw datatypes.JSON) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errs.Wrap(err, "decode payload")
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
