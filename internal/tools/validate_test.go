package tools

import "testing"

func TestRepairJSONEscapesBareControlCharsInsideStrings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare newline inside string is escaped",
			in:   "{\"a\":\"line1\nline2\"}",
			want: `{"a":"line1\nline2"}`,
		},
		{
			name: "bare tab inside string is escaped",
			in:   "{\"a\":\"x\ty\"}",
			want: `{"a":"x\ty"}`,
		},
		{
			name: "carriage return inside string is stripped",
			in:   "{\"a\":\"x\ry\"}",
			want: `{"a":"xy"}`,
		},
		{
			name: "already-escaped sequences pass through untouched",
			in:   `{"a":"x\ny"}`,
			want: `{"a":"x\ny"}`,
		},
		{
			name: "newline outside a string is left alone",
			in:   "{\n\"a\":\"b\"\n}",
			want: "{\n\"a\":\"b\"\n}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(RepairJSON([]byte(tt.in)))
			if got != tt.want {
				t.Errorf("RepairJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseArgsRepairsThenParses(t *testing.T) {
	raw := []byte("{\"path\":\"a\nb\"}")
	m, errStr := ParseArgs(raw)
	if errStr != "" {
		t.Fatalf("ParseArgs returned error %q", errStr)
	}
	if m["path"] != "a\nb" {
		t.Errorf("m[path] = %q, want %q", m["path"], "a\nb")
	}
}

func TestParseArgsSurfacesStructuralErrors(t *testing.T) {
	_, errStr := ParseArgs([]byte(`{"path": `))
	if errStr == "" {
		t.Fatal("expected a validation error string for truncated JSON")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	schema := ParamsSchema{Required: []string{"path", "content"}}

	got := Validate(map[string]any{"path": "a"}, schema)
	if got == "" {
		t.Fatal("expected a missing-field error")
	}

	got = Validate(map[string]any{"path": "a", "content": "b"}, schema)
	if got != "" {
		t.Errorf("Validate() = %q, want empty", got)
	}
}

func TestValidateKinds(t *testing.T) {
	schema := ParamsSchema{Kinds: map[string]string{"count": "number", "name": "string"}}

	got := Validate(map[string]any{"count": "not-a-number", "name": "ok"}, schema)
	if got == "" {
		t.Fatal("expected a type-mismatch error")
	}

	got = Validate(map[string]any{"count": float64(3), "name": "ok"}, schema)
	if got != "" {
		t.Errorf("Validate() = %q, want empty", got)
	}
}
