package inspect

import (
	"strings"

	"github.com/gezibash/pointcloud-transport/internal/cel"
)

// CompileFilter compiles a --where expression against the descriptor
// attributes. An empty expression yields a nil filter, which matches
// everything.
func CompileFilter(expr string) (*cel.Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	return cel.Compile(expr, FilterVars()...)
}

// FilterVars are the variables visible to --where expressions.
func FilterVars() []cel.Var {
	return []cel.Var{
		cel.String("identity"),
		cel.String("package"),
		cel.String("publisher"),
		cel.String("subscriber"),
		cel.String("publisher_status"),
		cel.String("subscriber_status"),
		cel.Bool("problem"),
	}
}

// Attributes exposes d to filter expressions.
func (d Descriptor) Attributes() map[string]any {
	return map[string]any{
		"identity":          d.Identity,
		"package":           d.Package,
		"publisher":         d.PublisherLookupName,
		"subscriber":        d.SubscriberLookupName,
		"publisher_status":  d.PublisherStatus.String(),
		"subscriber_status": d.SubscriberStatus.String(),
		"problem":           d.Problem(),
	}
}

// Filter returns a report restricted to descriptors matching f. The problem
// flag is recomputed over the remaining descriptors.
func (r *Report) Filter(f *cel.Filter) *Report {
	if f == nil {
		return r
	}
	kept := make([]Descriptor, 0, len(r.Descriptors))
	for _, d := range r.Descriptors {
		if f.Match(d.Attributes()) {
			kept = append(kept, d)
		}
	}
	out := NewReport(kept)
	out.styled = r.styled
	out.width = r.width
	return out
}
