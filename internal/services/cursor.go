package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"giveaway/internal/models"
)

// pageCursor is the decoded form of an opaque continuation cursor
type pageCursor struct {
	Sort  string          `json:"s"`
	Value json.RawMessage `json:"v"`
	ID    string          `json:"id"`
}

func sortValue(c *models.Campaign, field string) interface{} {
	switch field {
	case "updated_at":
		return c.UpdatedAt
	case "start_date":
		return c.StartDate
	case "end_date":
		return c.EndDate
	case "draw_date":
		return c.DrawDate
	case "participant_count":
		return c.ParticipantCount
	case "access_count":
		return c.AccessCount
	case "title":
		return c.Title
	default:
		return c.CreatedAt
	}
}

func encodeCursor(c *models.Campaign, field string) (string, error) {
	value, err := json.Marshal(sortValue(c, field))
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(pageCursor{Sort: field, Value: value, ID: c.ID})
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}

// decodeCursor returns the typed keyset value and id carried by cursor
func decodeCursor(cursor, field string) (interface{}, string, error) {
	raw, err := base58.Decode(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("malformed cursor: %w", err)
	}
	var pc pageCursor
	if err := json.Unmarshal(raw, &pc); err != nil {
		return nil, "", fmt.Errorf("malformed cursor: %w", err)
	}
	if pc.Sort != field || pc.ID == "" {
		return nil, "", fmt.Errorf("cursor does not match sort field %q", field)
	}

	switch field {
	case "participant_count", "access_count":
		var n int
		if err := json.Unmarshal(pc.Value, &n); err != nil {
			return nil, "", fmt.Errorf("malformed cursor value: %w", err)
		}
		return n, pc.ID, nil
	case "title":
		var s string
		if err := json.Unmarshal(pc.Value, &s); err != nil {
			return nil, "", fmt.Errorf("malformed cursor value: %w", err)
		}
		return s, pc.ID, nil
	default:
		var t time.Time
		if err := json.Unmarshal(pc.Value, &t); err != nil {
			return nil, "", fmt.Errorf("malformed cursor value: %w", err)
		}
		return t, pc.ID, nil
	}
}
