package render

import (
	"fmt"
	"strings"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
)

// Symbols used by Text, one per kind
var Symbols = map[catalog.Kind]rune{
	catalog.Empty:  '.',
	catalog.Bear1:  '1',
	catalog.Bear2:  '2',
	catalog.HQ:     'H',
	catalog.Banner: 'B',
	catalog.City:   'C',
}

// Symbol returns the character for kind, '?' when it has none
func Symbol(kind catalog.Kind) rune {
	if r, ok := Symbols[kind]; ok {
		return r
	}
	return '?'
}

// Text renders the grid as rows of symbols with x/y rulers, followed by a legend
func Text(snap grid.Snapshot) string {
	var b strings.Builder

	b.WriteString("    ")
	for x := 0; x < snap.Width; x++ {
		b.WriteByte(byte('0' + x%10))
	}
	b.WriteByte('\n')

	for y := 0; y < snap.Height; y++ {
		fmt.Fprintf(&b, "%3d ", y)
		for x := 0; x < snap.Width; x++ {
			b.WriteRune(Symbol(snap.Get(x, y)))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nLegend: . empty, 1 BEAR 1, 2 BEAR 2, H Alliance HQ, B Banner, C City\n")
	return b.String()
}

// Summary lists every placed instance, one per line
func Summary(snap grid.Snapshot) string {
	instances := snap.Instances()
	if len(instances) == 0 {
		return "No tiles placed.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d tiles placed:\n", len(instances))
	for _, inst := range instances {
		fmt.Fprintf(&b, "- %s at (%d,%d) %dx%d", inst.Kind, inst.Origin.X, inst.Origin.Y, inst.Size, inst.Size)
		if inst.Kind == catalog.City {
			label := inst.Label
			if label == "" {
				label = "(unnamed)"
			}
			fmt.Fprintf(&b, " %q %s", label, inst.Color)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
