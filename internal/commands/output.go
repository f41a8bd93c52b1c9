package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/core/styles"
)

const timeLayout = "2006-01-02 15:04"

func printSessions(w io.Writer, sessions []classroom.Session) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTEACHER\tSTUDENT\tSTATUS\tSTARTED\tFINISHED")
	for _, s := range sessions {
		finished := "-"
		if s.FinishedAt != nil {
			finished = s.FinishedAt.Local().Format(timeLayout)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.TeacherID, s.StudentID, styles.Status(string(s.Status)),
			s.StartedAt.Local().Format(timeLayout), finished)
	}
	_ = tw.Flush()
}

func printEntries(w io.Writer, entries []mistake.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tSOURCE\tORIGINAL\tCORRECTED\tCATEGORIES")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, styles.Status(string(e.Status)), e.PersistedSource(),
			e.Original, correctedText(e), strings.Join(e.Categories, ","))
	}
	_ = tw.Flush()
}

// printEntry writes one entry in the long form used by streaming commands.
func printEntry(w io.Writer, e mistake.Entry) {
	_, _ = fmt.Fprintf(w, "%s %s\n", styles.Status(string(e.Status)), styles.TextForegroundBoldStyle.Render(e.Original))

	switch e.Status {
	case mistake.StatusDone:
		if e.IsCorrect {
			_, _ = fmt.Fprintf(w, "  %s\n", styles.TextSuccessStyle.Render("correct"))
		} else {
			_, _ = fmt.Fprintf(w, "  → %s\n", correctedText(e))
		}
		if e.Explanation != nil && *e.Explanation != "" {
			_, _ = fmt.Fprintf(w, "  %s\n", styles.TextMutedStyle.Render(*e.Explanation))
		}
		if len(e.Categories) > 0 {
			_, _ = fmt.Fprintf(w, "  %s\n", styles.TextMutedStyle.Render(strings.Join(e.Categories, ", ")))
		}
	case mistake.StatusError:
		_, _ = fmt.Fprintf(w, "  %s\n", styles.TextErrorStyle.Render(fmt.Sprintf("%s: %s", e.ErrorKind, e.LastError)))
		_, _ = fmt.Fprintf(w, "  %s\n", styles.TextMutedStyle.Render("retry with: linglenz entries retry "+e.SessionID+" "+e.ID))
	}
}

func correctedText(e mistake.Entry) string {
	if e.Corrected == nil {
		return "-"
	}
	return *e.Corrected
}

func printActive(w io.Writer, s classroom.Session) {
	_, _ = fmt.Fprintf(w, "%s class with %s (%s) since %s\n",
		styles.Status(string(s.Status)), styles.TextForegroundBoldStyle.Render(s.StudentID), s.ID,
		s.StartedAt.Local().Format(time.Kitchen))
}
