package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeBase(t *testing.T) {
	base, err := DecodeBase([]byte(`{"type":"RELOAD","request_id":"abc"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if base.Type != TypeReload {
		t.Fatalf("type = %q, want %q", base.Type, TypeReload)
	}
}

func TestDecodeBaseRejectsMissingType(t *testing.T) {
	if _, err := DecodeBase([]byte(`{"request_id":"abc"}`)); err == nil {
		t.Fatalf("expected error for message without type")
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestResultOmitsEmptyStatus(t *testing.T) {
	data, err := json.Marshal(ResultMessage{Type: TypeResult, RequestID: "r1", OK: true, Message: "reloaded"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := m["status"]; present {
		t.Fatalf("status should be omitted when nil: %s", data)
	}
	if _, present := m["code"]; present {
		t.Fatalf("code should be omitted when empty: %s", data)
	}
}

func TestIsKnownCode(t *testing.T) {
	if !IsKnownCode(ErrBadRequest) {
		t.Fatalf("%s should be known", ErrBadRequest)
	}
	if IsKnownCode("E_NOPE") {
		t.Fatalf("E_NOPE should not be known")
	}
}
