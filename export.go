package orbital

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ExportConfig configures the CSV exports consumed by visualization and
// analysis collaborators.
type ExportConfig struct {
	Filename  string
	OutputDir string
	AsCSV     bool
	Timestamp bool
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV || c.Filename == ""
}

// TickState is the frozen state of the whole simulation at the end of one
// tick, as streamed to the exporter.
type TickState struct {
	Tick   uint64
	Time   float64 // sim seconds since session start
	States Snapshot
}

func (c ExportConfig) path(prefix string) string {
	dir := c.OutputDir
	if dir == "" {
		dir = "."
	}
	filename := c.Filename
	if c.Timestamp {
		t := time.Now()
		filename = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", filename, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%s/%s-%s.csv", dir, prefix, filename)
}

// createCSVFile returns a file which requires a defer close statement!
func createCSVFile(name string) *os.File {
	f, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	return f
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// StreamStates consumes tick states until the channel closes and writes them
// as CSV rows, one per body per tick.
func StreamStates(conf ExportConfig, stateChan <-chan TickState) {
	if conf.IsUseless() {
		for range stateChan {
		}
		return
	}
	f := createCSVFile(conf.path("states"))
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"tick", "time", "id", "name", "x", "y", "z", "vx", "vy", "vz"})
	for state := range stateChan {
		for _, b := range state.States {
			w.Write([]string{
				strconv.FormatUint(state.Tick, 10),
				fmtFloat(state.Time),
				strconv.Itoa(b.ID),
				b.Name,
				fmtFloat(b.R[0]), fmtFloat(b.R[1]), fmtFloat(b.R[2]),
				fmtFloat(b.V[0]), fmtFloat(b.V[1]), fmtFloat(b.V[2]),
			})
		}
	}
}

// ExportTrajectory writes a predicted trajectory as CSV for line drawing.
func ExportTrajectory(conf ExportConfig, traj Trajectory) error {
	if conf.IsUseless() {
		return nil
	}
	f, err := os.Create(conf.path(fmt.Sprintf("traj-%d", traj.BodyID)))
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err = w.Write([]string{"step", "x", "y", "z"}); err != nil {
		return err
	}
	for i, pt := range traj.Points {
		if err = w.Write([]string{strconv.Itoa(i + 1), fmtFloat(pt[0]), fmtFloat(pt[1]), fmtFloat(pt[2])}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
