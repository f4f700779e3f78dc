package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"time-tracker/internal/dto"
)

// emit prints v as JSON with --json, otherwise through human.
func (c *cli) emit(v any, human func(w io.Writer)) error {
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(c.out)
	return nil
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

// formatElapsed renders seconds as "1h 2m 3s", dropping leading zero units.
func formatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func state(l dto.LineView) string {
	if d := l.ActiveDuration(); d != nil {
		return "running since " + d.StartedAt.Local().Format("15:04")
	}
	switch {
	case l.Active:
		return "running"
	case len(l.Durations) == 0:
		return "idle"
	}
	return "paused"
}

func printTrackers(w io.Writer, trackers []dto.EntryView) {
	if len(trackers) == 0 {
		fmt.Fprintln(w, "No trackers found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tCREATED")
	for _, t := range trackers {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Label, t.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func printLines(w io.Writer, lines []dto.LineView) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRACKER\tSTATE\tSTARTED\tELAPSED\tSEGMENTS\tDESCRIPTION")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\t%s\n",
			l.ID, l.EntryID, state(l),
			l.StartedAt.Local().Format("2006-01-02 15:04"),
			formatElapsed(l.ElapsedSeconds),
			len(l.Durations), l.Desc)
	}
	tw.Flush()
}

func printLine(w io.Writer, verb string, l dto.LineView) {
	fmt.Fprintf(w, "%s session %d (tracker %d) %q: %s, %s across %d segment(s)\n",
		verb, l.ID, l.EntryID, l.Desc, state(l), formatElapsed(l.ElapsedSeconds), len(l.Durations))
	for _, d := range l.Durations {
		end := "ongoing"
		if d.EndedAt != nil {
			end = d.EndedAt.Local().Format(time.TimeOnly)
		}
		fmt.Fprintf(w, "  %s – %s\n", d.StartedAt.Local().Format(time.DateTime), end)
	}
}
