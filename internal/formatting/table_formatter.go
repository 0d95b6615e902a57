package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"portal/pkg/auth"
	pkgstrings "portal/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) *TableFormatter {
	return &TableFormatter{options: options}
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Output)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(t table.Writer, columns ...string) {
	if f.options.NoHeaders {
		return
	}
	row := make(table.Row, len(columns))
	for i, c := range columns {
		row[i] = text.FgHiCyan.Sprint(c)
	}
	t.AppendHeader(row)
}

// FormatAccounts renders one row per session. The current one is marked.
func (f *TableFormatter) FormatAccounts(accounts []auth.AccountStatus) error {
	if len(accounts) == 0 {
		f.formatEmptyMessage("No accounts. Run: portal account add")
		return nil
	}

	t := f.createTable()
	f.header(t, "", "SESSION", "NAME", "SCHOOL", "AFFILIATION", "STATUS", "STUDENTS")
	for _, a := range accounts {
		marker := ""
		if a.Current {
			marker = text.FgGreen.Sprint("*")
		}
		t.AppendRow(table.Row{
			marker,
			pkgstrings.ShortID(a.SessionID),
			pkgstrings.Truncate(a.Name, pkgstrings.DefaultNameMaxLen),
			pkgstrings.Truncate(a.School, pkgstrings.DefaultNameMaxLen),
			a.Affiliation,
			formatAuthenticated(a.Authenticated),
			len(a.Students),
		})
	}
	t.Render()
	return nil
}

// FormatAccount renders a key/value view of one session and its students.
func (f *TableFormatter) FormatAccount(a auth.AccountStatus) error {
	t := f.createTable()
	f.header(t, "FIELD", "VALUE")
	t.AppendRows([]table.Row{
		{"Session", a.SessionID},
		{"Name", a.Name},
		{"School", a.School},
		{"Affiliation", a.Affiliation},
		{"Status", formatAuthenticated(a.Authenticated)},
		{"Current", a.Current},
	})
	t.Render()

	if len(a.Students) == 0 {
		return nil
	}
	students := f.createTable()
	f.header(students, "", "STUDENT", "UUID")
	for _, s := range a.Students {
		marker := ""
		if s.UUID == a.SelectedStudent {
			marker = text.FgGreen.Sprint("*")
		}
		students.AppendRow(table.Row{marker, pkgstrings.Truncate(s.Name, pkgstrings.DefaultNameMaxLen), s.UUID})
	}
	students.Render()
	return nil
}

// FormatStatus prints the status in the aligned "Label: value" style used by
// the auth commands.
func (f *TableFormatter) FormatStatus(s auth.StatusResponse) error {
	w := f.options.Output
	fmt.Fprintln(w, "Portal Authentication")
	fmt.Fprintf(w, "  Status:    %s\n", formatStatus(s.Status))
	if s.Issuer != "" {
		fmt.Fprintf(w, "  Issuer:    %s\n", s.Issuer)
	}
	fmt.Fprintf(w, "  Accounts:  %d\n", s.Accounts)

	if s.Current != nil {
		fmt.Fprintf(w, "  Current:   %s", s.Current.Name)
		if s.Current.School != "" {
			fmt.Fprintf(w, " (%s)", s.Current.School)
		}
		fmt.Fprintln(w)
		if s.Current.SelectedStudent != "" {
			fmt.Fprintf(w, "  Student:   %s\n", selectedStudentName(*s.Current))
		}
	}

	switch {
	case s.Error != "":
		fmt.Fprintf(w, "  Login:     %s\n", text.FgRed.Sprint(s.Error))
		fmt.Fprintln(w, "             Run: portal auth retry")
	case s.LoggedIn:
		fmt.Fprintf(w, "  Login:     %s\n", text.FgGreen.Sprint("Authenticated"))
	default:
		fmt.Fprintf(w, "  Login:     %s\n", text.FgYellow.Sprint("Not authenticated"))
		fmt.Fprintln(w, "             Run: portal auth login")
	}
	return nil
}

// FormatEvent prints one line per event.
func (f *TableFormatter) FormatEvent(e auth.EventRecord) error {
	kind := text.FgGreen.Sprint(e.Kind)
	if e.Type == "Warning" {
		kind = text.FgYellow.Sprint(e.Kind)
	}
	line := fmt.Sprintf("%s  %-22s %s", e.Time.Format(time.TimeOnly), kind, e.Message)
	if e.LogoutURL != "" {
		line += "\n  Complete the logout at: " + e.LogoutURL
	}
	_, err := fmt.Fprintln(f.options.Output, strings.TrimRight(line, " "))
	return err
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(message string) {
	fmt.Fprintln(f.options.Output, text.FgYellow.Sprint(message))
}

func formatAuthenticated(ok bool) string {
	if ok {
		return text.FgGreen.Sprint("Authenticated")
	}
	return text.FgHiBlack.Sprint("Not logged in")
}

func formatStatus(status string) string {
	switch status {
	case "READY":
		return text.FgGreen.Sprint(status)
	case "ERROR":
		return text.FgRed.Sprint(status)
	default:
		return text.FgYellow.Sprint(status)
	}
}

func selectedStudentName(a auth.AccountStatus) string {
	for _, s := range a.Students {
		if s.UUID == a.SelectedStudent {
			return s.Name
		}
	}
	return a.SelectedStudent
}
