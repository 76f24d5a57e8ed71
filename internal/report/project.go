// Package report projects the history ledger into the status report grid and renders it.
package report

import (
	"github.com/codex-k8s/nightly/internal/history"
	"github.com/codex-k8s/nightly/internal/nightly"
)

// Grid is the template by date view of the ledger handed to the renderer.
type Grid struct {
	// Dates lists the window days, newest first.
	Dates []string
	// Templates lists template labels in sort order.
	Templates []string
	// Cases maps template label to date to outcome.
	Cases map[string]map[string]nightly.Outcome
}

// Row is one template line of the grid in date order.
type Row struct {
	Template string
	Outcomes []nightly.Outcome
}

// Project reshapes the ledger into a Grid restricted to the ledger window.
func Project(l *history.Ledger) Grid {
	grid := Grid{
		Dates:     append([]string(nil), l.Dates...),
		Templates: append([]string(nil), l.Templates...),
		Cases:     make(map[string]map[string]nightly.Outcome, len(l.Templates)),
	}
	for _, label := range l.Templates {
		byDate := make(map[string]nightly.Outcome, len(l.Dates))
		for _, d := range l.Dates {
			byDate[d] = l.Cases[d].Outcome(label)
		}
		grid.Cases[label] = byDate
	}
	return grid
}

// Rows returns the grid as ordered rows, convenient for templates.
func (g Grid) Rows() []Row {
	rows := make([]Row, 0, len(g.Templates))
	for _, label := range g.Templates {
		row := Row{Template: label, Outcomes: make([]nightly.Outcome, 0, len(g.Dates))}
		for _, d := range g.Dates {
			row.Outcomes = append(row.Outcomes, g.Cases[label][d])
		}
		rows = append(rows, row)
	}
	return rows
}
