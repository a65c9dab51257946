// Command trainreport renders an HTML loss report from a recorded
// training-log database. With no run id it lists the recorded runs.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kestrel-vision/detcore/internal/monitor"
	"github.com/kestrel-vision/detcore/internal/trainlog"
)

func main() {
	dbPath := flag.String("db", "trainlog.db", "path to the training-log database")
	runID := flag.String("run", "", "run id to report on (empty lists runs)")
	outDir := flag.String("out", ".", "output directory for the report")
	flag.Parse()

	store, err := trainlog.Open(*dbPath)
	if err != nil {
		log.Fatalf("trainreport: %v", err)
	}
	defer store.Close()

	if *runID == "" {
		runs, err := store.Runs()
		if err != nil {
			log.Fatalf("trainreport: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Note)
		}
		return
	}

	steps, err := store.Steps(*runID)
	if err != nil {
		log.Fatalf("trainreport: %v", err)
	}
	if len(steps) == 0 {
		log.Fatalf("trainreport: run %s has no recorded steps", *runID)
	}

	outPath := filepath.Join(*outDir, fmt.Sprintf("loss-%s.html", *runID))
	f, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("trainreport: %v", err)
	}
	defer f.Close()

	if err := monitor.RenderLossChart(f, fmt.Sprintf("run %s", *runID), steps); err != nil {
		log.Fatalf("trainreport: %v", err)
	}
	fmt.Printf("wrote %s (%d steps)\n", outPath, len(steps))
}
