package rpc

import (
	"encoding/json"
	"testing"
)

func TestRequestWireShape(t *testing.T) {
	req := Request{JSONRPC: "2.0", ID: 7, Method: "tools/call", Params: json.RawMessage(`{"x":1}`)}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded["jsonrpc"] != "2.0" || decoded["method"] != "tools/call" {
		t.Errorf("unexpected wire shape: %v", decoded)
	}
	if decoded["id"].(float64) != 7 {
		t.Errorf("expected id 7, got %v", decoded["id"])
	}
}

func TestResponseErrorOmitsResult(t *testing.T) {
	resp := Response{JSONRPC: "2.0", ID: 1, Error: &Error{Code: CodeMethodNotFound, Message: "nope"}}
	data, _ := json.Marshal(resp)
	var decoded map[string]any
	json.Unmarshal(data, &decoded)
	if _, hasResult := decoded["result"]; hasResult {
		t.Error("expected result to be omitted on an error response")
	}
	errObj, ok := decoded["error"].(map[string]any)
	if !ok {
		t.Fatal("expected error object")
	}
	if errObj["code"].(float64) != CodeMethodNotFound {
		t.Errorf("expected code %d, got %v", CodeMethodNotFound, errObj["code"])
	}
}

func TestClassifyDistinguishesFrameKinds(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, "request"},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, "response"},
		{"notification", `{"jsonrpc":"2.0","method":"initialized"}`, "notification"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			kind, _, err := classify([]byte(c.line))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kind != c.want {
				t.Errorf("expected kind %q, got %q", c.want, kind)
			}
		})
	}
}
