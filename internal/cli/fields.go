package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

type field struct {
	key   string
	value any
}

// fields keeps key-value pairs in insertion order.
type fields []field

func (f fields) object(size int) map[string]any {
	obj := make(map[string]any, len(f)+size)
	for _, p := range f {
		obj[toJSONKey(p.key)] = p.value
	}
	return obj
}

// keyWidth is the widest "key:" label.
func (f fields) keyWidth() int {
	w := 0
	for _, p := range f {
		w = max(w, len(p.key)+1)
	}
	return w
}

// markdownValue formats v for inline markdown. String slices render as
// comma-separated code spans.
func markdownValue(v any) string {
	if items, ok := v.([]string); ok {
		spans := make([]string, len(items))
		for i, s := range items {
			spans[i] = "`" + s + "`"
		}
		return strings.Join(spans, ", ")
	}
	return strings.ReplaceAll(fmt.Sprint(v), "|", `\|`)
}

// KV renders ordered key-value pairs. Created via Output.KV().
type KV struct {
	out    *Output
	meta   Meta
	fields fields
}

// Set appends a pair.
func (k *KV) Set(key string, value any) *KV {
	k.fields = append(k.fields, field{key, value})
	return k
}

func (k *KV) Render() error { return k.out.Render(k) }
func (k *KV) Meta() Meta    { return k.meta }

// RenderText writes borderless "key: value" rows.
func (k *KV) RenderText(w io.Writer) error {
	if len(k.fields) == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	opts := &tw.Style().Options
	opts.DrawBorder = false
	opts.SeparateColumns = false
	opts.SeparateRows = false
	opts.SeparateHeader = false

	for _, p := range k.fields {
		tw.AppendRow(table.Row{p.key + ":", fmt.Sprint(p.value)})
	}
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

func (k *KV) RenderJSON() any { return k.fields.object(0) }

// RenderMarkdown writes one bold key per paragraph.
func (k *KV) RenderMarkdown(w io.Writer) error {
	for _, p := range k.fields {
		if _, err := fmt.Fprintf(w, "**%s:** %s\n\n", p.key, markdownValue(p.value)); err != nil {
			return err
		}
	}
	return nil
}

// Result is a single message with ordered details. Created via
// Output.Result().
type Result struct {
	out     *Output
	meta    Meta
	message string
	details fields
}

// With appends a detail.
func (r *Result) With(key string, value any) *Result {
	r.details = append(r.details, field{key, value})
	return r
}

func (r *Result) Render() error { return r.out.Render(r) }
func (r *Result) Meta() Meta    { return r.meta }

// RenderText writes the message followed by indented details.
func (r *Result) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, r.message); err != nil {
		return err
	}
	width := r.details.keyWidth()
	for _, d := range r.details {
		if _, err := fmt.Fprintf(w, "  %-*s  %v\n", width, d.key+":", d.value); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON returns the message and details as one object.
func (r *Result) RenderJSON() any {
	obj := r.details.object(1)
	obj["message"] = r.message
	return obj
}

// RenderMarkdown writes the message in bold and details as a list.
func (r *Result) RenderMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "**%s**\n\n", r.message); err != nil {
		return err
	}
	for _, d := range r.details {
		if _, err := fmt.Fprintf(w, "- **%s:** %s\n", d.key, markdownValue(d.value)); err != nil {
			return err
		}
	}
	return nil
}
