package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	enabled      = os.Getenv("STRATA_DEBUG") != ""
	verboseMode  = false
	quietMode    = false
	logMutex     sync.Mutex
	eventLogPath string
)

// Event codes written to .strata/events.log.
const (
	EventSyncStart      = "sync.start"
	EventSyncPhase      = "sync.phase"
	EventSyncDone       = "sync.done"
	EventTaskReopened   = "task.reopened"
	EventACPropagated   = "ac.propagated"
	EventOriginConflict = "origin.conflict"
	EventTransportError = "transport.error"
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// SetEventLogPath overrides where LogEvent writes. Empty restores the
// default of <project>/.strata/events.log.
func SetEventLogPath(path string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	eventLogPath = path
}

// LogEvent appends an event to .strata/events.log.
// Format: TIMESTAMP|EVENT|ENTITY|RUN_ID|DETAILS
func LogEvent(event, entity, runID, details string) {
	logMutex.Lock()
	defer logMutex.Unlock()

	logPath := eventLogPath
	if logPath == "" {
		projectRoot, err := findProjectRoot()
		if err != nil {
			// Silent fail if not in a project
			return
		}
		logPath = filepath.Join(projectRoot, ".strata", "events.log")
	}

	if entity == "" {
		entity = "none"
	}
	if runID == "" {
		runID = "none"
	}
	// Keep one event per line.
	details = strings.NewReplacer("\n", " ", "|", "/").Replace(details)

	timestamp := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s|%s|%s|%s|%s\n", timestamp, event, entity, runID, details)

	_ = os.MkdirAll(filepath.Dir(logPath), 0o755)

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // logPath is project-relative
	if err != nil {
		// Don't interrupt a sync if logging fails
		return
	}
	defer file.Close()

	_, _ = file.WriteString(entry)
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		strataDir := filepath.Join(dir, ".strata")
		if info, err := os.Stat(strataDir); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a strata project")
		}
		dir = parent
	}
}
