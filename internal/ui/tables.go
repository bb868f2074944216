package ui

import (
	"fmt"
	"strings"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/mutation"
	"github.com/five82/roster/internal/query"
)

// column is one table column. A zero width takes the remaining space.
type column struct {
	title string
	width int
}

// tableRow is one rendered row. Badge is drawn with the status palette.
type tableRow struct {
	cells   []string
	badge   string
	pending bool // optimistic row not yet confirmed by the server
}

var tableColumns = [numViews][]column{
	ViewClasses:   {{"ID", 6}, {"Class", 0}, {"Year", 6}, {"Semester", 12}, {"Teacher", 18}, {"Students", 9}},
	ViewSubjects:  {{"ID", 6}, {"Code", 10}, {"Subject", 0}, {"Credits", 8}},
	ViewUsers:     {{"ID", 6}, {"Username", 16}, {"Name", 0}, {"Email", 26}, {"Role", 10}},
	ViewMaterials: {{"ID", 6}, {"Title", 0}, {"File", 24}, {"Type", 8}, {"Uploaded", 12}},
}

func idCell(id int64) string {
	if mutation.IsPlaceholder(id) {
		return "…"
	}
	return fmt.Sprintf("%d", id)
}

// rows converts the cached entry of v into table rows.
func (m Model) rows(v View) []tableRow {
	e := m.entries[v]
	switch v {
	case ViewClasses:
		items, _ := query.Value[[]api.Class](e)
		out := make([]tableRow, 0, len(items))
		for _, c := range items {
			out = append(out, tableRow{
				cells:   []string{idCell(c.ID), c.ClassName, fmt.Sprintf("%d", c.SchoolYear), c.Semester, c.TeacherName, fmt.Sprintf("%d", c.StudentCount)},
				pending: mutation.IsPlaceholder(c.ID),
			})
		}
		return out
	case ViewSubjects:
		items, _ := query.Value[[]api.Subject](e)
		out := make([]tableRow, 0, len(items))
		for _, s := range items {
			out = append(out, tableRow{
				cells:   []string{idCell(s.ID), s.SubjectCode, s.SubjectName, fmt.Sprintf("%d", s.Credits)},
				pending: mutation.IsPlaceholder(s.ID),
			})
		}
		return out
	case ViewUsers:
		items, _ := query.Value[[]api.User](e)
		out := make([]tableRow, 0, len(items))
		for _, u := range items {
			out = append(out, tableRow{
				cells:   []string{idCell(u.ID), u.Username, u.FullName, u.Email, ""},
				badge:   u.Role,
				pending: mutation.IsPlaceholder(u.ID),
			})
		}
		return out
	case ViewMaterials:
		items, _ := query.Value[[]api.Material](e)
		out := make([]tableRow, 0, len(items))
		for _, mat := range items {
			out = append(out, tableRow{
				cells:   []string{idCell(mat.ID), mat.Title, mat.FileName, mat.FileType, truncate(mat.UploadedAt, 10)},
				pending: mutation.IsPlaceholder(mat.ID),
			})
		}
		return out
	}
	return nil
}

func (m Model) rowCount(v View) int {
	return len(m.rows(v))
}

// selectedLabel names the highlighted row for confirmations.
func (m Model) selectedLabel() string {
	rows := m.rows(m.currentView)
	sel := m.selected[m.currentView]
	if sel < 0 || sel >= len(rows) || rows[sel].pending {
		return ""
	}
	cells := rows[sel].cells
	return fmt.Sprintf("%s #%s %s", strings.TrimSuffix(m.currentView.String(), "s"), cells[0], strings.TrimSpace(cells[1]))
}

// tableHeight is the number of body rows that fit on screen: header,
// command bar, box title, borders, column header and status line.
func (m Model) tableHeight() int {
	return max(1, m.height-7)
}

// renderTable renders the table of v with its loading and error states.
func (m Model) renderTable(v View) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)
	width := max(20, m.width)
	inner := width - 4
	e := m.entries[v]

	title := titleCase(v.String())
	if v == ViewMaterials && m.classID > 0 {
		title = fmt.Sprintf("Materials of class #%d", m.classID)
	}
	if e.Fetching {
		title += " (syncing)"
	}

	var body string
	rows := m.rows(v)
	switch {
	case v == ViewMaterials && m.classID <= 0:
		body = bg.Render("Select a class first: c, then enter", styles.MutedText)
	case e.Status == query.StatusLoading || (e.Status == query.StatusIdle && len(rows) == 0):
		body = bg.Render("Loading...", styles.WarningText)
	case e.Status == query.StatusError && !e.HasData():
		body = bg.Render("Could not load: "+e.Err.Error(), styles.DangerText)
	default:
		body = m.renderRows(v, rows, inner)
		if e.Status == query.StatusError {
			body += "\n" + bg.Render("Showing cached data: "+e.Err.Error(), styles.DangerText)
		}
	}

	return m.renderBox(title, body, width, m.height-4, true)
}

// renderRows lays out the column header and the visible window of rows.
func (m Model) renderRows(v View, rows []tableRow, width int) string {
	styles := m.theme.Styles()
	cols := fitColumns(tableColumns[v], width)

	var b strings.Builder
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = padRight(truncate(c.title, c.width), c.width)
	}
	b.WriteString(styles.MutedText.Bold(true).Render(strings.Join(header, " ")))

	if len(rows) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("No rows"))
		return b.String()
	}

	height := m.tableHeight()
	sel := m.selected[v]
	start := 0
	if sel >= height {
		start = sel - height + 1
	}
	end := min(len(rows), start+height)

	for i := start; i < end; i++ {
		r := rows[i]
		cells := make([]string, len(cols))
		for j, c := range cols {
			val := ""
			if j < len(r.cells) {
				val = r.cells[j]
			}
			cells[j] = padRight(truncate(val, c.width), c.width)
		}
		line := strings.Join(cells, " ")
		b.WriteString("\n")
		switch {
		case i == sel:
			b.WriteString(styles.Selected.Render(line))
		case r.pending:
			b.WriteString(styles.FaintText.Italic(true).Render(line))
		default:
			b.WriteString(styles.Text.Render(line))
		}
		if r.badge != "" {
			b.WriteString(" ")
			b.WriteString(styles.StatusStyle(r.badge).Render(titleCase(r.badge)))
		}
	}
	return b.String()
}

// fitColumns gives the flexible column whatever the fixed ones leave.
func fitColumns(cols []column, width int) []column {
	out := make([]column, len(cols))
	copy(out, cols)
	fixed, flex := 0, -1
	for i, c := range out {
		if c.width == 0 {
			flex = i
			continue
		}
		fixed += c.width + 1
	}
	if flex >= 0 {
		out[flex].width = max(8, width-fixed-1)
	}
	return out
}
