package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
		{"JSON", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewMeta(t *testing.T) {
	m := NewMeta("transport-report")
	if m.Type != "transport-report" {
		t.Errorf("Type = %q", m.Type)
	}
	if m.Version != "v1" {
		t.Errorf("Version = %q", m.Version)
	}
	if m.Generated.IsZero() {
		t.Error("Generated should be set")
	}
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	if NewOutput(FormatText, &buf).IsTerminal() {
		t.Error("buffer reported as terminal")
	}
	if NewOutput(FormatJSON, &buf).IsTerminal() {
		t.Error("json output reported as terminal")
	}
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

func TestTableText(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewOutput(FormatText, &buf).Table("host-backends", "Backend", "Setting", "Default")
	tbl.AddRow("nats", "url", "nats://127.0.0.1:4222").AddRow("memory")
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d", tbl.Len())
	}
	if err := tbl.Render(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"BACKEND", "SETTING", "nats://127.0.0.1:4222", "memory"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("text table missing %q:\n%s", want, buf.String())
		}
	}
}

func TestTableJSON(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewOutput(FormatJSON, &buf).Table("host-backends", "Backend", "Default Value")
	tbl.AddRow("redis", "localhost:6379").AddRow("memory")
	if err := tbl.Render(); err != nil {
		t.Fatal(err)
	}

	var envelope struct {
		Meta Meta                `json:"meta"`
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if envelope.Meta.Type != "host-backends" {
		t.Errorf("meta.type = %q", envelope.Meta.Type)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("rows = %d", len(envelope.Data))
	}
	if got := envelope.Data[0]["default_value"]; got != "localhost:6379" {
		t.Errorf("default_value = %q", got)
	}
	if got, ok := envelope.Data[1]["default_value"]; !ok || got != "" {
		t.Errorf("missing cell = %q, %v; want empty string", got, ok)
	}
}

func TestTableMarkdown(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewOutput(FormatMarkdown, &buf).Table("host-backends", "Backend")
	tbl.AddRow("memory")
	if err := tbl.Render(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "---\ntype: host-backends\nversion: v1\n") {
		t.Errorf("missing frontmatter:\n%s", out)
	}
	if !strings.Contains(out, "| Backend |") || !strings.Contains(out, "| memory |") {
		t.Errorf("missing pipe table:\n%s", out)
	}
}

// ---------------------------------------------------------------------------
// KV
// ---------------------------------------------------------------------------

func TestKVText(t *testing.T) {
	var buf bytes.Buffer
	err := NewOutput(FormatText, &buf).KV("version").
		Set("version", "dev").
		Set("backends", []string{"memory", "nats"}).
		Render()
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "version:") || !strings.Contains(lines[0], "dev") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[memory nats]") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestKVEmptyText(t *testing.T) {
	var buf bytes.Buffer
	if err := NewOutput(FormatText, &buf).KV("empty").Render(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestKVJSON(t *testing.T) {
	var buf bytes.Buffer
	err := NewOutput(FormatJSON, &buf).KV("version").
		Set("Go Version", "go1.25").
		Set("subscribers", []string{"raw_sub"}).
		Render()
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Data["go_version"] != "go1.25" {
		t.Errorf("go_version = %v", envelope.Data["go_version"])
	}
	subs, ok := envelope.Data["subscribers"].([]any)
	if !ok || len(subs) != 1 || subs[0] != "raw_sub" {
		t.Errorf("subscribers = %v", envelope.Data["subscribers"])
	}
}

func TestKVMarkdown(t *testing.T) {
	var buf bytes.Buffer
	err := NewOutput(FormatMarkdown, &buf).KV("version").
		Set("publishers", []string{"raw_pub", "zstd_pub"}).
		Set("expr", "a|b").
		Render()
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "**publishers:** `raw_pub`, `zstd_pub`\n\n") {
		t.Errorf("slice not rendered as code spans:\n%s", out)
	}
	if !strings.Contains(out, `**expr:** a\|b`) {
		t.Errorf("pipe not escaped:\n%s", out)
	}
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

func TestResultText(t *testing.T) {
	var buf bytes.Buffer
	err := NewOutput(FormatText, &buf).Result("publish", "published 3 clouds").
		With("topic", "points/raw").
		With("transport", "raw").
		Render()
	if err != nil {
		t.Fatal(err)
	}
	want := "published 3 clouds\n" +
		"  topic:      points/raw\n" +
		"  transport:  raw\n"
	if buf.String() != want {
		t.Errorf("got:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestResultJSON(t *testing.T) {
	var buf bytes.Buffer
	err := NewOutput(FormatJSON, &buf).Result("echo", "received 2 clouds").
		With("publishers", 1).
		Render()
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Meta Meta           `json:"meta"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Meta.Type != "echo" {
		t.Errorf("meta.type = %q", envelope.Meta.Type)
	}
	if envelope.Data["message"] != "received 2 clouds" {
		t.Errorf("message = %v", envelope.Data["message"])
	}
	if envelope.Data["publishers"] != float64(1) {
		t.Errorf("publishers = %v", envelope.Data["publishers"])
	}
}

func TestResultMarkdown(t *testing.T) {
	var buf bytes.Buffer
	err := NewOutput(FormatMarkdown, &buf).Result("publish", "published 1 clouds").
		With("topic", "points/raw").
		Render()
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "---\n\n**published 1 clouds**\n\n- **topic:** points/raw\n") {
		t.Errorf("unexpected markdown:\n%s", out)
	}
}
