package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/matt-steen/taskflow/pkg/db"
)

// NoteDelimiter opens every audit note block.
const NoteDelimiter = "*************"

// TimestampLayout is the format of the audit note timestamps, always in UTC.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// noState stands for the missing source state of a created task and for an absent plan.
const noState = "-"

// noteBlock renders one audit note block. The caller prepends it to the existing notes.
func noteBlock(action Action, actor, from, to string, at time.Time, lines ...string) string {
	var b strings.Builder

	b.WriteString(NoteDelimiter)
	b.WriteString("\n")
	fmt.Fprintf(&b, "TASK %s [%s, %s -> %s, %s]", action, actor, from, to, at.UTC().Format(TimestampLayout))

	text := []string{}

	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			text = append(text, line)
		}
	}

	if len(text) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(text, "\n"))
	}

	return b.String()
}

func planLine(from, to string) string {
	if from == "" {
		from = noState
	}

	if to == "" {
		to = noState
	}

	return fmt.Sprintf("Plan: %s -> %s", from, to)
}

// PrependNote returns notes with block added in front, separated by a blank line. The
// store does the same inside its update statement.
func PrependNote(block, notes string) string {
	if notes == "" {
		return block
	}

	return block + "\n\n" + notes
}

func stateName(s db.State) string {
	if s == anyState {
		return noState
	}

	return string(s)
}
