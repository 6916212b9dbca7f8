package probe

import (
	"encoding/json"
	"testing"
)

// The wire bytes of the four requests are part of the contract: servers are
// smoke-tested with exactly these frames.
func TestStepPayloadBytes(t *testing.T) {
	want := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"add","arguments":{"a":5,"b":3}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"db_health_check"}}`,
	}

	steps := Steps()
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i, step := range steps {
		data, err := json.Marshal(step.Request)
		if err != nil {
			t.Fatalf("step %d marshal: %v", i+1, err)
		}
		if string(data) != want[i] {
			t.Errorf("step %d payload:\n got  %s\n want %s", i+1, data, want[i])
		}
	}
}

func TestStepIDsAreMonotonic(t *testing.T) {
	for i, step := range Steps() {
		id, ok := step.Request.ID.(int)
		if !ok {
			t.Fatalf("step %d id is %T, want int", i+1, step.Request.ID)
		}
		if id != i+1 {
			t.Errorf("step %d id = %d, want %d", i+1, id, i+1)
		}
	}
}
