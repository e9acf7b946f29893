package artifact

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pfch/internal/canonical"
	"github.com/roach88/pfch/internal/sim"
)

// Required files of every run directory, in the order they are written.
const (
	MetaFile    = "meta.json"
	ConfigFile  = "config.json"
	RunFile     = "run.json"
	MetricsFile = "metrics.csv"
)

// Optional files.
const (
	TelemetryFile  = "telemetry.jsonl"
	FramesFile     = "frames.npy"
	FrameStepsFile = "frame_steps.npy"
)

// RequiredFiles lists the files every run directory must contain.
var RequiredFiles = []string{MetaFile, ConfigFile, RunFile, MetricsFile}

// RequiredRunKeys lists the keys run.json must carry.
var RequiredRunKeys = []string{"test_id", "run_hash", "controller", "seed"}

// TimeFormat is the created_utc layout: ISO-8601, UTC, second precision.
const TimeFormat = "2006-01-02T15:04:05Z"

const stagePrefix = ".tmp-"

// Clock supplies the wall time recorded in meta.json.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the real wall clock.
var SystemClock Clock = systemClock{}

// Writer materializes a sim.Result as a run directory.
type Writer struct {
	Clock  Clock
	Logger *slog.Logger
}

// NewWriter returns a Writer on the system clock that discards logs.
func NewWriter() *Writer {
	return &Writer{
		Clock:  SystemClock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Meta is the content of meta.json.
type Meta struct {
	TestID     string `json:"test_id"`
	RunHash    string `json:"run_hash"`
	Controller string `json:"controller"`
	Seed       int64  `json:"seed"`
	CreatedUTC string `json:"created_utc"`
}

// RunDir returns the directory a run of (testID, runHash) lives in.
func RunDir(baseDir, testID, runHash string) string {
	return filepath.Join(baseDir, testID, runHash)
}

// Write stages every file of res in a temporary directory next to its final
// location and renames it into place. A previous directory with the same
// run hash is replaced. On error nothing is left at the final location.
func (w *Writer) Write(baseDir string, res *sim.Result) (string, error) {
	if res == nil {
		return "", fmt.Errorf("artifact: nil result")
	}
	if res.TestID == "" || res.RunHash == "" {
		return "", fmt.Errorf("artifact: result has no test_id or run_hash")
	}
	clock := w.Clock
	if clock == nil {
		clock = SystemClock
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	parent := filepath.Join(baseDir, res.TestID)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("artifact: create %s: %w", parent, err)
	}
	stage := filepath.Join(parent, stagePrefix+res.RunHash+"-"+uuid.NewString())
	if err := os.Mkdir(stage, 0o755); err != nil {
		return "", fmt.Errorf("artifact: create staging dir: %w", err)
	}

	if err := writeAll(stage, res, clock.Now()); err != nil {
		os.RemoveAll(stage)
		return "", err
	}

	final := RunDir(baseDir, res.TestID, res.RunHash)
	if err := replaceDir(stage, final); err != nil {
		os.RemoveAll(stage)
		return "", err
	}

	logger.Info("artifacts written",
		"test_id", res.TestID,
		"run_hash", res.RunHash,
		"dir", final,
	)
	return final, nil
}

func writeAll(dir string, res *sim.Result, now time.Time) error {
	meta := Meta{
		TestID:     res.TestID,
		RunHash:    res.RunHash,
		Controller: res.Controller,
		Seed:       res.Seed,
		CreatedUTC: now.UTC().Format(TimeFormat),
	}
	if err := writeCanonical(dir, MetaFile, meta); err != nil {
		return err
	}
	if err := writeCanonical(dir, ConfigFile, res.Config); err != nil {
		return err
	}
	if err := writeCanonical(dir, RunFile, runDocument(res)); err != nil {
		return err
	}
	if err := writeFile(dir, MetricsFile, func(f io.Writer) error {
		return WriteMetricsCSV(f, res.Metrics)
	}); err != nil {
		return err
	}

	for _, s := range res.Series {
		values := s.Values
		if err := writeFile(dir, s.Name+".npy", func(f io.Writer) error {
			return WriteNPY(f, []int{len(values)}, values)
		}); err != nil {
			return err
		}
	}
	for _, field := range res.Fields {
		var data any = field.Real
		if field.Complex != nil {
			data = field.Complex
		}
		shape := field.Shape
		if err := writeFile(dir, field.Name+".npy", func(f io.Writer) error {
			return WriteNPY(f, shape, data)
		}); err != nil {
			return err
		}
	}

	if len(res.Telemetry) > 0 {
		if err := writeFile(dir, TelemetryFile, func(f io.Writer) error {
			return writeTelemetry(f, res.Telemetry)
		}); err != nil {
			return err
		}
	}

	if fr := res.Frames; fr != nil && len(fr.Steps) > 0 {
		shape := append([]int{len(fr.Steps)}, fr.Shape...)
		if err := writeFile(dir, FramesFile, func(f io.Writer) error {
			return WriteNPY(f, shape, fr.Data)
		}); err != nil {
			return err
		}
		steps := make([]int64, len(fr.Steps))
		for i, s := range fr.Steps {
			steps[i] = int64(s)
		}
		if err := writeFile(dir, FrameStepsFile, func(f io.Writer) error {
			return WriteNPY(f, []int{len(steps)}, steps)
		}); err != nil {
			return err
		}
	}
	return nil
}

// runDocument is run.json: scalars at the top level plus the identity keys
// and a config echo. Non-finite scalars are written as null.
func runDocument(res *sim.Result) map[string]any {
	doc := make(map[string]any, len(res.Scalars)+8)
	for k, v := range res.Scalars {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			doc[k] = nil
			continue
		}
		doc[k] = v
	}
	doc["test_id"] = res.TestID
	doc["run_hash"] = res.RunHash
	doc["controller"] = res.Controller
	doc["seed"] = res.Seed
	doc["config"] = res.Config
	doc["unstable"] = res.Unstable
	if res.Instability != "" {
		doc["instability"] = res.Instability
	}
	return doc
}

// WriteMetricsCSV writes a header row and one row per step. Floats use the
// shortest representation that round-trips.
func WriteMetricsCSV(w io.Writer, t sim.Table) error {
	if len(t.Header) == 0 {
		return fmt.Errorf("metrics: empty header")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	record := make([]string, len(t.Header))
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("metrics: row %d has %d columns, header has %d", i, len(row), len(t.Header))
		}
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTelemetry(w io.Writer, records []map[string]float64) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		line := make(map[string]any, len(rec))
		for k, v := range rec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				line[k] = nil
				continue
			}
			line[k] = v
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func writeCanonical(dir, name string, v any) error {
	data, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifact: encode %s: %w", name, err)
	}
	return writeFile(dir, name, func(f io.Writer) error {
		_, err := f.Write(data)
		return err
	})
}

func writeFile(dir, name string, fill func(io.Writer) error) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: create %s: %w", name, err)
	}
	bw := bufio.NewWriter(f)
	if err := fill(bw); err != nil {
		f.Close()
		return fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", name, err)
	}
	return nil
}

// replaceDir moves stage to final. An existing final directory is moved
// aside first and removed once the new one is in place.
func replaceDir(stage, final string) error {
	var aside string
	if _, err := os.Stat(final); err == nil {
		aside = stage + ".old"
		if err := os.Rename(final, aside); err != nil {
			return fmt.Errorf("artifact: move aside %s: %w", final, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("artifact: stat %s: %w", final, err)
	}

	if err := os.Rename(stage, final); err != nil {
		if aside != "" {
			os.Rename(aside, final)
		}
		return fmt.Errorf("artifact: rename into %s: %w", final, err)
	}
	if aside != "" {
		if err := os.RemoveAll(aside); err != nil {
			return fmt.Errorf("artifact: remove previous run: %w", err)
		}
	}
	return nil
}
