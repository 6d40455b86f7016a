package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/gezibash/pointcloud-transport/internal/cli"
)

// Hints printed in the detail block for identities with a failed role.
// Construction failures take precedence over library failures.
const (
	HintConstructionFailed = "*** Plugins are built, but could not be loaded. The package may need to be rebuilt or may not be compatible with this release of pointcloud-transport. ***"
	HintLibraryFailed      = "*** Plugins are not built. ***"
)

const separator = "----------"

var (
	problemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	identStyle   = lipgloss.NewStyle().Bold(true)
)

// Report is the result of one Inspector run. It implements cli.Renderable.
type Report struct {
	Descriptors    []Descriptor `json:"transports"`
	ProblemPackage bool         `json:"problem_package"`

	styled bool
	width  int
}

// NewReport builds a report over descriptors, which must already be sorted
// by identity.
func NewReport(descriptors []Descriptor) *Report {
	r := &Report{Descriptors: descriptors}
	for _, d := range descriptors {
		if d.Problem() {
			r.ProblemPackage = true
			break
		}
	}
	return r
}

// Styled enables terminal colors in text output.
func (r *Report) Styled(enabled bool) *Report {
	r.styled = enabled
	return r
}

// WrapAt wraps plugin descriptions in the text detail block to width columns.
// Zero disables wrapping.
func (r *Report) WrapAt(width int) *Report {
	r.width = width
	return r
}

// Meta returns the report metadata.
func (r *Report) Meta() cli.Meta {
	return cli.NewMeta("transport-report")
}

// RenderText writes the declared-transports summary followed by the detail
// block.
func (r *Report) RenderText(w io.Writer) error {
	var b strings.Builder

	b.WriteString("Declared transports:\n")
	for _, d := range r.Descriptors {
		if d.Problem() {
			line := fmt.Sprintf("%s (*): Not available. Try rebuilding package '%s'.", d.Identity, d.Package)
			b.WriteString(r.style(problemStyle, line))
		} else {
			b.WriteString(d.Identity)
		}
		b.WriteByte('\n')
	}
	if r.ProblemPackage {
		b.WriteString("(*) \n")
	}

	b.WriteString("\nDetails:\n")
	for _, d := range r.Descriptors {
		b.WriteString(separator + "\n")
		b.WriteString(r.style(identStyle, `"`+d.Identity+`"`) + "\n")
		if hint := d.Hint(); hint != "" {
			b.WriteString(r.style(hintStyle, hint) + "\n")
		}
		b.WriteString(" - Provided by package: " + d.Package + "\n")
		if d.PublisherStatus == StatusNotDeclared {
			b.WriteString(" - No publisher provided\n")
		} else {
			b.WriteString(r.wrap(" - Publisher: ", d.PublisherDescription) + "\n")
		}
		if d.SubscriberStatus == StatusNotDeclared {
			b.WriteString(" - No subscriber provided\n")
		} else {
			b.WriteString(r.wrap(" - Subscriber: ", d.SubscriberDescription) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON returns the report itself; statuses marshal as their names.
func (r *Report) RenderJSON() any {
	return r
}

// RenderMarkdown writes a summary table and one section per identity.
func (r *Report) RenderMarkdown(w io.Writer) error {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Transport", "Package", "Publisher", "Subscriber"})
	for _, d := range r.Descriptors {
		tw.AppendRow(table.Row{d.Identity, d.Package, d.PublisherStatus.String(), d.SubscriberStatus.String()})
	}

	if _, err := fmt.Fprintf(w, "## Declared transports\n\n%s\n", tw.RenderMarkdown()); err != nil {
		return err
	}

	for _, d := range r.Descriptors {
		if _, err := fmt.Fprintf(w, "\n### %s\n\n", d.Identity); err != nil {
			return err
		}
		if hint := d.Hint(); hint != "" {
			if _, err := fmt.Fprintf(w, "> %s\n\n", strings.Trim(hint, "* ")); err != nil {
				return err
			}
		}
		lines := []string{"- **Package:** " + d.Package}
		if d.PublisherStatus == StatusNotDeclared {
			lines = append(lines, "- No publisher provided")
		} else {
			lines = append(lines, fmt.Sprintf("- **Publisher** `%s`: %s", d.PublisherLookupName, d.PublisherDescription))
		}
		if d.SubscriberStatus == StatusNotDeclared {
			lines = append(lines, "- No subscriber provided")
		} else {
			lines = append(lines, fmt.Sprintf("- **Subscriber** `%s`: %s", d.SubscriberLookupName, d.SubscriberDescription))
		}
		if _, err := io.WriteString(w, strings.Join(lines, "\n")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Hint returns the detail-block hint for d, or "" when both roles are
// healthy or undeclared.
func (d Descriptor) Hint() string {
	switch {
	case d.PublisherStatus == StatusConstructionFailed || d.SubscriberStatus == StatusConstructionFailed:
		return HintConstructionFailed
	case d.PublisherStatus == StatusLibraryLoadFailed || d.SubscriberStatus == StatusLibraryLoadFailed:
		return HintLibraryFailed
	default:
		return ""
	}
}

func (r *Report) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// wrap word-wraps text after prefix, aligning continuation lines under the
// first character of text.
func (r *Report) wrap(prefix, text string) string {
	if r.width <= 0 || len(prefix)+len(text) <= r.width {
		return prefix + text
	}
	avail := r.width - len(prefix)
	if avail < 20 {
		avail = 20
	}
	wrapped := wordwrap.String(text, avail)
	first, rest, found := strings.Cut(wrapped, "\n")
	if !found {
		return prefix + first
	}
	return prefix + first + "\n" + indent.String(rest, uint(len(prefix)))
}
