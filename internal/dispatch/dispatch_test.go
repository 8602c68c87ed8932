package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/wardenhq/warden/internal/fault"
)

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes its args",
		Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
			return string(args), nil
		},
	}
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Tool{Name: "", Handler: echoTool("x").Handler}); err == nil {
		t.Error("Expected empty name to be rejected")
	}
	if err := r.Register(Tool{Name: "no_handler"}); err == nil {
		t.Error("Expected nil handler to be rejected")
	}
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(echoTool("echo")); err == nil {
		t.Error("Expected duplicate registration to be rejected")
	}
}

func TestDispatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := r.Dispatch(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result != `{"a":1}` {
		t.Errorf("Unexpected result: %v", result)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Dispatch(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("Expected unknown tool to error")
	}
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestList_SortedByName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	infos := r.List()
	if len(infos) != 3 || r.Count() != 3 {
		t.Fatalf("Expected 3 tools, got %d", len(infos))
	}
	if infos[0].Name != "alpha" || infos[1].Name != "mid" || infos[2].Name != "zeta" {
		t.Errorf("Expected sorted listing, got %v", infos)
	}
}
