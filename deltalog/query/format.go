package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/deltalog/deltalog/deltalog"
)

// FormatResult renders a query result set as a markdown table, resolving
// each interned Term back to its original value through u.
func FormatResult(u *deltalog.Universe, rel deltalog.Symbol, facts []deltalog.Fact) string {
	if len(facts) == 0 {
		return fmt.Sprintf("_%s: no rows_", rel)
	}

	arity := facts[0].Arity()
	headers := make([]string, arity)
	for i := range headers {
		headers[i] = strconv.Itoa(i)
	}

	builder := &strings.Builder{}
	alignment := make([]tw.Align, arity)
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(builder,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)

	for _, f := range facts {
		row := make([]string, len(f.Terms))
		for i, t := range f.Terms {
			row[i] = formatTerm(u, t)
		}
		table.Append(row)
	}
	table.Render()

	fmt.Fprintf(builder, "\n_%s: %d rows_\n", rel, len(facts))
	return builder.String()
}

func formatTerm(u *deltalog.Universe, t deltalog.Term) string {
	v, ok := u.Lookup(t)
	if !ok {
		return "?"
	}
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
