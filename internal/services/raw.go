package services

import (
	"encoding/json"
	"strings"

	"scribe/internal/models"
)

// RawInfo is what the pipeline reads out of a provider's raw result.
type RawInfo struct {
	Duration    float64
	HasDuration bool
	Segments    []models.Segment
}

type rawObject struct {
	Text     *string          `json:"text"`
	Duration *float64         `json:"duration"`
	Segments []models.Segment `json:"segments"`
}

// ParseRaw extracts duration and segments from a raw result. A JSON string,
// or anything that is not an object, carries neither.
func ParseRaw(raw json.RawMessage) RawInfo {
	var obj rawObject
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return RawInfo{}
	}
	info := RawInfo{Segments: obj.Segments}
	if obj.Duration != nil {
		info.Duration, info.HasDuration = *obj.Duration, true
	}
	return info
}

// EffectiveDuration prefers the explicit duration, else the last segment's
// end. Never negative.
func (r RawInfo) EffectiveDuration() float64 {
	d := 0.0
	switch {
	case r.HasDuration:
		d = r.Duration
	case len(r.Segments) > 0:
		d = r.Segments[len(r.Segments)-1].End
	}
	return max(d, 0)
}

// transcriptFromRaw returns the transcript text of a raw result: the string
// itself, the object's text field, or the joined segment texts.
func transcriptFromRaw(raw json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s), true
	}
	var obj rawObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	if obj.Text != nil {
		return strings.TrimSpace(*obj.Text), true
	}
	if len(obj.Segments) > 0 {
		parts := make([]string, 0, len(obj.Segments))
		for _, seg := range obj.Segments {
			if t := strings.TrimSpace(seg.Text); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, " "), true
	}
	return "", true
}
