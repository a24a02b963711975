// Command inspect prints a quick, human-readable report about stored map files.
// It accepts both store records ({"id": ..., "state": {...}}) and bare layouts
// ({"map": [...], "mapWidth": ...}) and reports dimensions, tile counts, and
// anything that would be repaired when the map is opened. With --fix the
// repaired layout is written back; with --png a rendering is written next to
// each file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/persistence"
	"github.com/wricardo/warmap/render"
)

// Report is the result of inspecting one file
type Report struct {
	Path     string
	ID       string
	Name     string
	Snapshot grid.Snapshot
	Repairs  []grid.Repair

	// record is set when the file was a store record rather than a bare layout
	record *persistence.Record
}

func main() {
	cmd := &cli.Command{
		Name:      "inspect",
		Usage:     "Report on stored war map files",
		ArgsUsage: "<file.json|dir>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fix", Usage: "Write repaired layouts back to disk"},
			&cli.BoolFlag{Name: "png", Usage: "Write a PNG rendering next to each file"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Skip the grid drawing"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.WithError(err).Fatal("inspect failed")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	paths, err := expandPaths(cmd.Args().Slice())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no map files given")
	}

	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}

	cat := catalog.Default()
	failed := 0
	for _, path := range paths {
		fmt.Fprintf(w, "\n=== Inspecting %s ===\n", path)

		report, err := inspectFile(path, cat)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			failed++
			continue
		}
		printReport(w, report, !cmd.Bool("quiet"))

		if cmd.Bool("fix") && len(report.Repairs) > 0 {
			if err := writeFixed(report); err != nil {
				fmt.Fprintf(w, "Error writing fix: %v\n", err)
				failed++
			} else {
				fmt.Fprintf(w, "Wrote repaired layout to %s\n", path)
			}
		}

		if cmd.Bool("png") {
			out := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
			if err := writePNG(out, report, cat); err != nil {
				fmt.Fprintf(w, "Error writing PNG: %v\n", err)
				failed++
			} else {
				fmt.Fprintf(w, "Wrote %s\n", out)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files had errors", failed, len(paths))
	}
	return nil
}

// expandPaths replaces directories with the JSON files they contain
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// inspectFile reads a record or bare layout and decodes it
func inspectFile(path string, cat *catalog.Catalog) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	report := &Report{Path: path}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}

	var layout grid.Persisted
	if _, isRecord := fields["state"]; isRecord {
		var rec persistence.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("error parsing record: %w", err)
		}
		report.record = &rec
		report.ID = rec.ID
		report.Name = rec.Name
		layout = rec.State
	} else if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("error parsing layout: %w", err)
	}

	snap, repairs, err := grid.FromPersisted(layout, cat, grid.DefaultDimensions())
	if err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	report.Snapshot = snap
	report.Repairs = repairs
	return report, nil
}

func printReport(w io.Writer, r *Report, drawGrid bool) {
	if r.ID != "" {
		fmt.Fprintf(w, "Map ID: %s\n", r.ID)
	}
	if r.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", r.Name)
	}
	fmt.Fprintf(w, "Grid Size: %d x %d\n", r.Snapshot.Width, r.Snapshot.Height)

	counts := make(map[catalog.Kind]int)
	instances := r.Snapshot.Instances()
	for _, inst := range instances {
		counts[inst.Kind]++
	}
	for _, kind := range catalog.Default().Kinds() {
		fmt.Fprintf(w, "%s: %d\n", kind, counts[kind])
	}

	if len(r.Repairs) > 0 {
		fmt.Fprintf(w, "WARNING: %d problems would be repaired on open\n", len(r.Repairs))
		for i, repair := range r.Repairs {
			if i < 10 {
				fmt.Fprintf(w, "   %s\n", repair)
			}
		}
		if len(r.Repairs) > 10 {
			fmt.Fprintf(w, "   ... and %d more\n", len(r.Repairs)-10)
		}
	} else {
		fmt.Fprintf(w, "OK: layout is consistent\n")
	}

	if drawGrid {
		fmt.Fprintln(w)
		fmt.Fprint(w, render.Text(r.Snapshot))
	}
	fmt.Fprint(w, render.Summary(r.Snapshot))
}

// writeFixed rewrites the file with the repaired layout, keeping its shape
func writeFixed(r *Report) error {
	fixed := grid.ToPersisted(r.Snapshot)

	var v interface{} = fixed
	if r.record != nil {
		rec := *r.record
		rec.State = fixed
		v = rec
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.Path, data, 0644)
}

func writePNG(path string, r *Report, cat *catalog.Catalog) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.EncodePNG(f, r.Snapshot, cat, render.DefaultOptions()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
