package controller

import (
	"fmt"
	"hash/fnv"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/rivo/tview"
)

// planColors is a list of colors for plans to alternate through so that tasks of the same
// plan are easier to spot.
func planColors() []string {
	return []string{
		"#FF0000",
		"#00FF00",
		"#0000FF",
		"#FFFF00",
		"#FF00FF",
		"#00FFFF",
		"#AA0000",
		"#00AA00",
		"#0000AA",
		"#AAAA00",
		"#AA00AA",
		"#00AAAA",
	}
}

func planColor(plan string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(plan))

	colors := planColors()

	return colors[h.Sum32()%uint32(len(colors))]
}

var columns = []struct {
	title     string
	expansion int
}{
	{"id", 1},
	{"name", 1},
	{"description", descNameRatio},
	{"plan", 1},
	{"owner", 1},
}

// StateContent implements tview.TableContent, which tview.Table uses to update data.
type StateContent struct {
	tview.TableContentReadOnly
	state db.State
	tasks []*db.Task
}

// GetCell returns the cell at the given position or nil if no cell.
func (s *StateContent) GetCell(row, col int) *tview.TableCell {
	if col < 0 || col >= len(columns) {
		return nil
	}

	if row == 0 {
		return tview.NewTableCell(columns[col].title).SetExpansion(columns[col].expansion).
			SetTextColor(tcell.ColorYellow).SetSelectable(false)
	}

	if row < 1 || row > len(s.tasks) {
		return nil
	}

	task := s.tasks[row-1]

	switch col {
	case 0:
		return tview.NewTableCell(task.ID).SetExpansion(1).SetReference(task)
	case 1:
		return tview.NewTableCell(task.Name).SetExpansion(1)
	case 2:
		return tview.NewTableCell(task.Description).SetExpansion(descNameRatio)
	case 3:
		if task.Plan == "" {
			return tview.NewTableCell("").SetExpansion(1)
		}

		return tview.NewTableCell(fmt.Sprintf("[%s]%s", planColor(task.Plan), task.Plan)).SetExpansion(1)
	default:
		return tview.NewTableCell(task.Owner).SetExpansion(1)
	}
}

// GetRowCount returns the number of rows in the table.
func (s *StateContent) GetRowCount() int {
	return len(s.tasks) + 1
}

// GetColumnCount returns the number of columns in the table.
func (s *StateContent) GetColumnCount() int {
	return len(columns)
}
