package eventschema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/htpot/collector/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RawEvent is the wire shape accepted by POST /ingest, before normalization.
type RawEvent struct {
	ObservedAt    string            `json:"observed_at" validate:"required"`
	SourceAddress string            `json:"source_address" validate:"required"`
	Protocol      string            `json:"protocol"`
	TargetService string            `json:"target_service" validate:"required"`
	Action        string            `json:"action" validate:"required"`
	TargetPath    string            `json:"target_path"`
	SessionID     string            `json:"session_id" validate:"required"`
	UserAgent     string            `json:"user_agent"`
	Headers       map[string]string `json:"headers"`
	Payload       json.RawMessage   `json:"payload"`
}

// sentinel byte used in content_hash serialization when a hashed field is
// absent or empty, so an absent field never collides with a present value.
const hashSentinel = 0xFF

// Canonicalize validates raw, normalizes timestamps to UTC, lowercases
// action/target_service, trims whitespace, and enforces field bounds. It
// returns an *apperr.Error with KindSchema or KindPayloadTooBig on failure.
func Canonicalize(raw RawEvent) (Event, *apperr.Error) {
	if len(raw.Payload) > MaxPayloadBytes {
		return Event{}, apperr.New(apperr.KindPayloadTooBig,
			fmt.Sprintf("payload %d bytes exceeds %d byte limit", len(raw.Payload), MaxPayloadBytes))
	}

	if err := validate.Struct(raw); err != nil {
		return Event{}, apperr.New(apperr.KindSchema, err.Error())
	}

	observedAt, err := parseTimestamp(raw.ObservedAt)
	if err != nil {
		return Event{}, apperr.New(apperr.KindSchema, fmt.Sprintf("observed_at: %s", err))
	}

	addr := strings.TrimSpace(raw.SourceAddress)
	if len(addr) == 0 || len(addr) > MaxSourceAddressLen {
		return Event{}, apperr.New(apperr.KindSchema,
			fmt.Sprintf("source_address length must be in [1,%d]", MaxSourceAddressLen))
	}

	action := strings.ToLower(strings.TrimSpace(raw.Action))
	if len(action) == 0 || len(action) > MaxActionLen {
		return Event{}, apperr.New(apperr.KindSchema,
			fmt.Sprintf("action length must be in [1,%d]", MaxActionLen))
	}

	targetService := strings.ToLower(strings.TrimSpace(raw.TargetService))
	if targetService == "" {
		return Event{}, apperr.New(apperr.KindSchema, "target_service must not be empty")
	}

	userAgent := strings.TrimSpace(raw.UserAgent)
	if len(userAgent) > MaxUserAgentLen {
		return Event{}, apperr.New(apperr.KindSchema,
			fmt.Sprintf("user_agent length must be at most %d", MaxUserAgentLen))
	}

	var payload []byte
	if len(raw.Payload) > 0 {
		payload = append(payload, raw.Payload...)
	}

	ev := Event{
		ObservedAt:    observedAt,
		IngestedAt:    time.Now().UTC(),
		SourceAddress: addr,
		Protocol:      strings.TrimSpace(raw.Protocol),
		TargetService: targetService,
		Action:        action,
		TargetPath:    strings.TrimSpace(raw.TargetPath),
		SessionID:     strings.TrimSpace(raw.SessionID),
		UserAgent:     userAgent,
		Headers:       raw.Headers,
		Payload:       payload,
	}
	ev.ContentHash = ContentHash(ev)
	return ev, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("not a valid ISO-8601 timestamp: %w", err)
		}
	}
	return t.UTC(), nil
}
