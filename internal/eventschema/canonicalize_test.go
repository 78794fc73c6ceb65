package eventschema

import (
	"strings"
	"testing"
)

func validRaw() RawEvent {
	return RawEvent{
		ObservedAt:    "2026-01-15T12:00:00Z",
		SourceAddress: "203.0.113.5",
		Protocol:      "tcp",
		TargetService: "SSH",
		Action:        "LOGIN_ATTEMPT",
		TargetPath:    "/admin",
		SessionID:     "sess-1",
		UserAgent:     "curl/8.0",
	}
}

func TestCanonicalize_NormalizesCaseAndWhitespace(t *testing.T) {
	raw := validRaw()
	raw.Action = "  LOGIN_attempt  "
	raw.TargetService = " SSH "

	ev, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Action != "login_attempt" {
		t.Fatalf("action=%q want login_attempt", ev.Action)
	}
	if ev.TargetService != "ssh" {
		t.Fatalf("target_service=%q want ssh", ev.TargetService)
	}
	if ev.ObservedAt.Location().String() != "UTC" {
		t.Fatalf("observed_at not normalized to UTC")
	}
	if ev.ContentHash == "" {
		t.Fatalf("content_hash not computed")
	}
}

func TestCanonicalize_MissingRequiredField(t *testing.T) {
	raw := validRaw()
	raw.SourceAddress = ""

	_, err := Canonicalize(raw)
	if err == nil {
		t.Fatalf("expected schema error")
	}
	if err.Kind != "SchemaError" {
		t.Fatalf("kind=%v want SchemaError", err.Kind)
	}
}

func TestCanonicalize_PayloadTooBig(t *testing.T) {
	raw := validRaw()
	raw.Payload = make([]byte, MaxPayloadBytes+1)

	_, err := Canonicalize(raw)
	if err == nil {
		t.Fatalf("expected payload-too-big error")
	}
	if err.Kind != "PayloadTooLarge" {
		t.Fatalf("kind=%v want PayloadTooLarge", err.Kind)
	}
}

func TestCanonicalize_InvalidTimestamp(t *testing.T) {
	raw := validRaw()
	raw.ObservedAt = "not-a-timestamp"

	_, err := Canonicalize(raw)
	if err == nil {
		t.Fatalf("expected schema error")
	}
	if !strings.Contains(err.Detail, "observed_at") {
		t.Fatalf("detail=%q want mention of observed_at", err.Detail)
	}
}

func TestCanonicalize_SourceAddressTooLong(t *testing.T) {
	raw := validRaw()
	raw.SourceAddress = strings.Repeat("a", MaxSourceAddressLen+1)

	_, err := Canonicalize(raw)
	if err == nil {
		t.Fatalf("expected schema error for oversized source_address")
	}
}

func TestContentHash_DeterministicAndFieldSensitive(t *testing.T) {
	raw := validRaw()
	ev1, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev2, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev1.ContentHash != ev2.ContentHash {
		t.Fatalf("hash not deterministic: %s != %s", ev1.ContentHash, ev2.ContentHash)
	}

	raw.Action = "different_action"
	ev3, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev1.ContentHash == ev3.ContentHash {
		t.Fatalf("hash did not change when action changed")
	}
}
