package mcp

import (
	"encoding/json"
	"testing"
)

func TestMessageClassification(t *testing.T) {
	var req Message
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`), &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if !req.IsRequest() {
		t.Error("message with method and id should be a request")
	}
	if req.IsNotification() {
		t.Error("message with id should not be a notification")
	}

	var note Message
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"initialized"}`), &note); err != nil {
		t.Fatalf("unmarshal notification: %v", err)
	}
	if !note.IsNotification() {
		t.Error("id-less message with method should be a notification")
	}
	if note.IsRequest() {
		t.Error("id-less message should not be a request")
	}

	var resp Message
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":7,"result":{"tools":[]}}`), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.IsRequest() || resp.IsNotification() {
		t.Error("response should be neither request nor notification")
	}
}

func TestErrorResponseShape(t *testing.T) {
	resp := NewErrorResponse(3, ErrorCodeMethodNotFound, "Method not found", nil)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Method not found"}}`
	if string(data) != want {
		t.Errorf("error response = %s, want %s", data, want)
	}
}

func TestRPCErrorImplementsError(t *testing.T) {
	var err error = &Error{Code: ErrorCodeInvalidParams, Message: "bad arguments"}
	if err.Error() != "rpc error -32602: bad arguments" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestTextContent(t *testing.T) {
	content := TextContent("8")
	if len(content) != 1 || content[0].Type != "text" || content[0].Text != "8" {
		t.Errorf("TextContent built %+v", content)
	}
}
