package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"stackit/application/board"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printBoard(w io.Writer, snap board.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	if snap.Status == board.StatusFallback {
		fmt.Fprintf(w, "(sample question, %s could not be loaded)\n\n", snap.RequestedID)
	}
	fmt.Fprintf(w, "%s\n%s\n\n", snap.Title, strings.Repeat("=", len(snap.Title)))
	if snap.Body != "" {
		fmt.Fprintf(w, "%s\n\n", snap.Body)
	}
	if len(snap.Answers) == 0 {
		fmt.Fprintln(w, "No answers yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVOTES\tANSWER")
	for _, a := range snap.Answers {
		votes := fmt.Sprintf("%d", a.Votes)
		if a.VotedByUser {
			votes += " *"
		}
		id := a.ID
		if a.Pending {
			id += " (pending)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, votes, firstLine(a.Text))
	}
	return tw.Flush()
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i] + " ..."
	}
	return text
}
