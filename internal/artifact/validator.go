package artifact

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Violation is one broken contract rule in one run directory.
type Violation struct {
	RunDir string `json:"run_dir"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.RunDir + ": " + v.Reason
}

// Report is the outcome of validating a tree of run directories.
type Report struct {
	Runs       int         `json:"runs"`
	Violations []Violation `json:"violations"`
}

// OK reports whether no violations were found.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Validate checks every run directory under root against the artifact
// contract. A run directory is any directory holding at least one of the
// required files, so a run stays visible when its run.json is gone.
// Staging directories are skipped. The error return is reserved for
// failures to walk root.
func Validate(root string) (Report, error) {
	var report Report
	if _, err := os.Stat(root); err != nil {
		return report, fmt.Errorf("validate: %w", err)
	}

	dirs, err := discoverRunDirs(root)
	if err != nil {
		return report, err
	}
	report.Runs = len(dirs)
	report.Violations = []Violation{}
	for _, dir := range dirs {
		for _, reason := range CheckRunDir(dir) {
			report.Violations = append(report.Violations, Violation{RunDir: dir, Reason: reason})
		}
	}
	return report, nil
}

func discoverRunDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), stagePrefix) {
			return filepath.SkipDir
		}
		for _, name := range RequiredFiles {
			if fileExists(filepath.Join(path, name)) {
				dirs = append(dirs, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("validate: walk %s: %w", root, err)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// CheckRunDir returns the reasons dir breaks the contract, or nil.
func CheckRunDir(dir string) []string {
	var reasons []string
	for _, name := range RequiredFiles {
		if !fileExists(filepath.Join(dir, name)) {
			reasons = append(reasons, "missing "+name)
		}
	}

	if fileExists(filepath.Join(dir, RunFile)) {
		reasons = append(reasons, checkRunJSON(filepath.Join(dir, RunFile))...)
	}
	if fileExists(filepath.Join(dir, MetaFile)) {
		if err := checkJSONObject(filepath.Join(dir, MetaFile)); err != nil {
			reasons = append(reasons, MetaFile+" unparsable: "+err.Error())
		}
	}
	if fileExists(filepath.Join(dir, MetricsFile)) {
		if reason := checkMetrics(filepath.Join(dir, MetricsFile)); reason != "" {
			reasons = append(reasons, reason)
		}
	}

	npys, _ := filepath.Glob(filepath.Join(dir, "*.npy"))
	sort.Strings(npys)
	for _, path := range npys {
		if err := checkNPY(path); err != nil {
			reasons = append(reasons, filepath.Base(path)+": "+err.Error())
		}
	}
	return reasons
}

func checkRunJSON(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{RunFile + " unreadable: " + err.Error()}
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{RunFile + " unparsable: " + err.Error()}
	}
	var reasons []string
	for _, k := range RequiredRunKeys {
		if _, ok := doc[k]; !ok {
			reasons = append(reasons, RunFile+" missing key "+k)
		}
	}
	return reasons
}

func checkJSONObject(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc map[string]any
	return json.Unmarshal(data, &doc)
}

func checkMetrics(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return MetricsFile + " unreadable: " + err.Error()
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return MetricsFile + " is empty"
	}
	if err != nil {
		return MetricsFile + " unparsable: " + err.Error()
	}
	for _, col := range header {
		col = strings.TrimSpace(col)
		if col == "" {
			return MetricsFile + " has no header"
		}
		if _, err := strconv.ParseFloat(col, 64); err == nil {
			return MetricsFile + " has no header"
		}
	}
	return ""
}

func checkNPY(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := ReadNPYHeader(f)
	if err != nil {
		return err
	}
	size := itemSize(h.Descr)
	if size == 0 {
		return nil
	}
	info, err := f.Stat()
	if err != nil {
		return err
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if want := int64(h.Len() * size); info.Size()-pos != want {
		return fmt.Errorf("npy: data is %d bytes, shape %v needs %d", info.Size()-pos, h.Shape, want)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
