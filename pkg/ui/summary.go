package ui

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"docharvest/pkg/traversal"
)

// RenderSummary writes a table of every attempted entry followed by the run
// totals. Entries are listed by position.
func RenderSummary(w io.Writer, state *traversal.RunState) {
	type row struct {
		position int
		title    string
		outcome  string
		detail   string
	}

	rows := make([]row, 0, len(state.Completed)+len(state.Skipped))
	for _, f := range state.Completed {
		outcome := "downloaded"
		detail := f.Final
		if f.RenameFailed {
			outcome = "kept name"
			detail = fmt.Sprintf("%s (%s)", f.Detected, f.RenameError)
		}
		rows = append(rows, row{f.Position, f.Title, outcome, detail})
	}
	for _, s := range state.Skipped {
		rows = append(rows, row{s.Position, s.Title, "skipped: " + string(s.Reason), s.Message})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].position < rows[j].position })

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Title", "Outcome", "File / Reason"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.position + 1, truncate(r.title, 40), r.outcome, truncate(r.detail, 60)})
	}
	t.AppendFooter(table.Row{"", "Total", len(state.Completed), fmt.Sprintf("%d skipped", len(state.Skipped))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Transformer: outcomeColor},
	})
	t.Render()

	fmt.Fprintf(w, "Cursor %d • processed %d • expansions %d • %s\n",
		state.Cursor, state.Processed, state.Expansions, state.DoneReason)
}

func outcomeColor(val interface{}) string {
	s := fmt.Sprint(val)
	switch {
	case s == "downloaded":
		return text.FgGreen.Sprint(s)
	case s == "kept name":
		return text.FgYellow.Sprint(s)
	default:
		return text.FgRed.Sprint(s)
	}
}
