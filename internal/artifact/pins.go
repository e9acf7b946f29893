package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pfch/internal/config"
)

// Error codes for pinned-run lookups.
const (
	ErrCodeMissing = "MISSING_ARTIFACT"
	ErrCodeBadPin  = "BAD_PIN"
)

// Error is a structured artifact lookup error.
type Error struct {
	Code    string
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

// IsMissingArtifact reports whether err is a missing run directory or file.
func IsMissingArtifact(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == ErrCodeMissing
}

// IsBadPin reports whether err is a malformed lockfile entry.
func IsBadPin(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == ErrCodeBadPin
}

var (
	testIDRE  = regexp.MustCompile(`^[A-Z]{1,4}\d{2,3}$`)
	runHashRE = regexp.MustCompile(`^[0-9a-f]{7}$`)
)

// MaxSummaryScalars caps the scalars printed on a summary line.
const MaxSummaryScalars = 12

// Pin locks one run of one experiment.
type Pin struct {
	TestID  string `yaml:"test_id" json:"test_id"`
	RunHash string `yaml:"run_hash" json:"run_hash"`
}

// Validate checks the test id and run hash patterns. Test ids either match
// the archive pattern or name a built-in experiment.
func (p Pin) Validate() error {
	if !testIDRE.MatchString(p.TestID) && !slices.Contains(config.TestIDs, p.TestID) {
		return &Error{Code: ErrCodeBadPin, Message: fmt.Sprintf("test_id %q does not match %s", p.TestID, testIDRE)}
	}
	if !runHashRE.MatchString(p.RunHash) {
		return &Error{Code: ErrCodeBadPin, Message: fmt.Sprintf("run_hash %q does not match %s", p.RunHash, runHashRE)}
	}
	return nil
}

// LoadPins reads a YAML lockfile holding a list of pins.
func LoadPins(path string) ([]Pin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lockfile: %w", err)
	}
	return ParsePins(data)
}

// ParsePins decodes and validates a YAML list of pins.
func ParsePins(data []byte) ([]Pin, error) {
	var pins []Pin
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pins); err != nil {
		if errors.Is(err, io.EOF) {
			return []Pin{}, nil
		}
		return nil, &Error{Code: ErrCodeBadPin, Message: "decode lockfile: " + err.Error()}
	}
	for i, p := range pins {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pin %d: %w", i, err)
		}
	}
	return pins, nil
}

// Scalar is a named numeric value from run.json.
type Scalar struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Summary is what the pinned-run reader shows for one run directory.
type Summary struct {
	Dir        string   `json:"dir"`
	TestID     string   `json:"test_id"`
	RunHash    string   `json:"run_hash"`
	Controller string   `json:"controller"`
	Seed       int64    `json:"seed"`
	CreatedUTC string   `json:"created_utc"`
	Scalars    []Scalar `json:"scalars"`
}

// Line renders the summary as one line:
// "<test_id> <run_hash> controller=<c> seed=<s> k=v ...".
func (s Summary) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s controller=%s seed=%d", s.TestID, s.RunHash, s.Controller, s.Seed)
	for _, sc := range s.Scalars {
		b.WriteString(" ")
		b.WriteString(sc.Name)
		b.WriteString("=")
		b.WriteString(strconv.FormatFloat(sc.Value, 'g', -1, 64))
	}
	return b.String()
}

// Summarize reads the summary of one run directory. Every required file must
// exist; the first missing one is reported as an ErrCodeMissing error.
func Summarize(dir string) (*Summary, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &Error{Code: ErrCodeMissing, Path: dir, Message: "run directory not found"}
	}
	for _, name := range RequiredFiles {
		if !fileExists(filepath.Join(dir, name)) {
			return nil, &Error{Code: ErrCodeMissing, Path: filepath.Join(dir, name), Message: "missing " + name}
		}
	}

	var run map[string]any
	if err := readJSON(filepath.Join(dir, RunFile), &run); err != nil {
		return nil, err
	}
	var meta Meta
	if err := readJSON(filepath.Join(dir, MetaFile), &meta); err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := readJSON(filepath.Join(dir, ConfigFile), &cfg); err != nil {
		return nil, err
	}

	s := &Summary{
		Dir:        dir,
		TestID:     stringKey(run, "test_id", filepath.Base(filepath.Dir(dir))),
		RunHash:    stringKey(run, "run_hash", filepath.Base(dir)),
		Controller: stringKey(run, "controller", "unknown"),
		CreatedUTC: meta.CreatedUTC,
	}
	if seed, ok := run["seed"].(float64); ok {
		s.Seed = int64(seed)
	}

	names := make([]string, 0, len(run))
	for k, v := range run {
		if _, ok := v.(float64); ok && k != "seed" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	if len(names) > MaxSummaryScalars {
		names = names[:MaxSummaryScalars]
	}
	for _, k := range names {
		s.Scalars = append(s.Scalars, Scalar{Name: k, Value: run[k].(float64)})
	}
	return s, nil
}

// SummarizePins summarizes every pin under baseDir, stopping at the first
// run that cannot be read.
func SummarizePins(baseDir string, pins []Pin) ([]*Summary, error) {
	out := make([]*Summary, 0, len(pins))
	for _, p := range pins {
		s, err := Summarize(RunDir(baseDir, p.TestID, p.RunHash))
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Latest returns the most recently written run directory of testID under
// baseDir. Recency is the mtime of meta.json, falling back to the directory
// mtime when meta.json is absent.
func Latest(baseDir, testID string) (string, error) {
	parent := filepath.Join(baseDir, testID)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", &Error{Code: ErrCodeMissing, Path: parent, Message: "no runs for " + testID}
	}

	var best string
	var bestTime time.Time
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), stagePrefix) {
			continue
		}
		dir := filepath.Join(parent, e.Name())
		if !fileExists(filepath.Join(dir, RunFile)) {
			continue
		}
		mt := modTime(dir)
		if best == "" || mt.After(bestTime) || (mt.Equal(bestTime) && dir > best) {
			best, bestTime = dir, mt
		}
	}
	if best == "" {
		return "", &Error{Code: ErrCodeMissing, Path: parent, Message: "no runs for " + testID}
	}
	return best, nil
}

func modTime(dir string) time.Time {
	if info, err := os.Stat(filepath.Join(dir, MetaFile)); err == nil {
		return info.ModTime()
	}
	if info, err := os.Stat(dir); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func stringKey(doc map[string]any, key, fallback string) string {
	if s, ok := doc[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
