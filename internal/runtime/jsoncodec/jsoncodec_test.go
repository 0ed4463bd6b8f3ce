package jsoncodec

import (
	"strings"
	"testing"
)

type testPayload struct {
	SessionID string   `json:"session_id"`
	Events    []string `json:"events"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{SessionID: "ACME-001122-SN1-ROUTER", Events: []string{"0 BOOTSTRAP"}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.SessionID != in.SessionID || len(out.Events) != 1 {
		t.Fatalf("expected round trip to match, got %#v", out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"session_id\"") {
		t.Fatalf("expected indented output, got %s", string(indented))
	}
}

func TestMarshalNilSliceAsNull(t *testing.T) {
	data, err := Marshal(testPayload{SessionID: "x"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"events":null`) {
		t.Fatalf("expected nil slice to encode as null, got %s", data)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"a":1}`)) {
		t.Fatal("expected object to be valid")
	}
	if Valid([]byte("<xml/>")) {
		t.Fatal("expected xml to be invalid json")
	}
}
