package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aegisline/coreengine/internal/engine"
)

func echoHandler(content string) Handler {
	return HandlerFunc(func(ctx context.Context, args json.RawMessage) (Result, error) {
		return Result{Content: content, Type: engine.ToolSuccess}, nil
	})
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	desc := Descriptor{Name: "read_file", ApprovalClass: ApprovalNone}
	reg.Register(desc, echoHandler("ok"))

	got, ok := reg.Descriptor("read_file")
	if !ok {
		t.Fatal("expected read_file to be registered")
	}
	if got.Name != "read_file" {
		t.Errorf("got.Name = %q, want read_file", got.Name)
	}

	h, ok := reg.Handler("read_file")
	if !ok {
		t.Fatal("expected a handler for read_file")
	}
	res, err := h.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Content != "ok" {
		t.Errorf("res.Content = %q, want ok", res.Content)
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: "x"}, echoHandler("ok"))
	reg.Unregister("x")

	if _, ok := reg.Descriptor("x"); ok {
		t.Error("expected x to be gone after Unregister")
	}
}

func TestRegistryDescriptorsListsAll(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: "a"}, echoHandler("a"))
	reg.Register(Descriptor{Name: "b"}, echoHandler("b"))

	descs := reg.Descriptors()
	if len(descs) != 2 {
		t.Fatalf("len(descs) = %d, want 2", len(descs))
	}
}
