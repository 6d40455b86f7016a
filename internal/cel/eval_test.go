package cel

import (
	"errors"
	"testing"
)

var reportVars = []Var{
	String("identity"),
	String("publisher_status"),
	Bool("problem"),
}

func TestStringEquality(t *testing.T) {
	f, err := Compile(`identity == "raw"`, reportVars...)
	if err != nil {
		t.Fatal(err)
	}

	if !f.Match(map[string]any{"identity": "raw"}) {
		t.Error("expected match")
	}
	if f.Match(map[string]any{"identity": "zip"}) {
		t.Error("expected no match")
	}
}

func TestBooleanFilter(t *testing.T) {
	f, err := Compile(`!problem`, reportVars...)
	if err != nil {
		t.Fatal(err)
	}

	if !f.Match(map[string]any{"problem": false}) {
		t.Error("expected match")
	}
	if f.Match(map[string]any{"problem": true}) {
		t.Error("expected no match")
	}
}

func TestCompoundExpression(t *testing.T) {
	f, err := Compile(`publisher_status == "INSTANTIATION_OK" && identity.startsWith("z")`, reportVars...)
	if err != nil {
		t.Fatal(err)
	}

	if !f.Match(map[string]any{"identity": "zip", "publisher_status": "INSTANTIATION_OK"}) {
		t.Error("expected match")
	}
	if f.Match(map[string]any{"identity": "raw", "publisher_status": "INSTANTIATION_OK"}) {
		t.Error("expected no match for raw")
	}
}

func TestMissingKeyReturnsFalse(t *testing.T) {
	f, err := Compile(`identity == "raw" && !problem`, reportVars...)
	if err != nil {
		t.Fatal(err)
	}
	if f.Match(map[string]any{"identity": "raw"}) {
		t.Error("expected false for missing key")
	}
}

func TestCompileError(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"syntax", `invalid syntax !!!`},
		{"undeclared", `transport == "raw"`},
		{"type mismatch", `problem == "yes"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.expr, reportVars...); err == nil {
				t.Errorf("Compile(%q) expected error", tt.expr)
			}
		})
	}
}

func TestCompileNonBoolean(t *testing.T) {
	_, err := Compile(`identity + "_pub"`, reportVars...)
	if !errors.Is(err, ErrNotBoolean) {
		t.Fatalf("err = %v, want ErrNotBoolean", err)
	}
}

func TestNilFilterMatchesAll(t *testing.T) {
	var f *Filter
	if !f.Match(nil) {
		t.Error("nil filter should match")
	}
	if f.String() != "" {
		t.Errorf("String() = %q", f.String())
	}
}

func TestFilterString(t *testing.T) {
	f, err := Compile(`problem`, reportVars...)
	if err != nil {
		t.Fatal(err)
	}
	if f.String() != "problem" {
		t.Errorf("String() = %q", f.String())
	}
}
