package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecordFromPayload lifts id, owner and the collection's designated date
// field out of an opaque document payload. The payload itself is stored
// untouched.
func RecordFromPayload(collection string, payload json.RawMessage) (*Record, error) {
	if !ValidCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", collection, err)
	}

	rec := &Record{Payload: payload, UpdatedAt: time.Now()}
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &rec.ID); err != nil {
			return nil, fmt.Errorf("decode %s id: %w", collection, err)
		}
	}
	if raw, ok := fields["ownerId"]; ok {
		if err := json.Unmarshal(raw, &rec.OwnerID); err != nil {
			return nil, fmt.Errorf("decode %s ownerId: %w", collection, err)
		}
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%s payload has no id", collection)
	}

	if raw, ok := fields[DateField(collection)]; ok {
		var date time.Time
		if err := json.Unmarshal(raw, &date); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", collection, DateField(collection), err)
		}
		rec.Date = date
	}
	return rec, nil
}

// MergePayloads overlays the newer payload's top-level fields onto the
// older one. Non-object payloads fall back to the newest value.
func MergePayloads(prev, next json.RawMessage) json.RawMessage {
	if prev == nil {
		return next
	}

	var base, overlay map[string]interface{}
	if err := json.Unmarshal(prev, &base); err != nil {
		return next
	}
	if err := json.Unmarshal(next, &overlay); err != nil {
		return next
	}
	for k, v := range overlay {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return next
	}
	return merged
}
