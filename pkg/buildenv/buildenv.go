// Package buildenv exposes which upstream build a copy step actually used
// as environment variables of the destination build.
//
// The record lives exactly as long as the destination build object and is
// never serialized; a reloaded build recomputes from nothing. It is
// best-effort state for later steps of the same build, not a durability
// guarantee.
package buildenv

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// KeyPrefix is the environment variable namespace for recorded upstream
// build numbers.
const KeyPrefix = "COPYARTIFACT_BUILD_NUMBER_"

var nonLetters = regexp.MustCompile(`[^A-Z]+`)

// Key derives the environment variable name for a project reference:
// anything after the first '/' is dropped, the remainder upper-cased, and
// every run of non-letter characters collapsed to a single underscore.
func Key(projectName string) string {
	if i := strings.Index(projectName, "/"); i > 0 {
		projectName = projectName[:i]
	}
	name := nonLetters.ReplaceAllString(strings.ToUpper(projectName), "_")
	return KeyPrefix + name
}

// Record is the transient per-build environment contribution. It is safe
// for concurrent use by copy units of the same expansion.
type Record struct {
	mu   sync.Mutex
	data map[string]string
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{data: make(map[string]string)}
}

// Add records the upstream build number used for the project reference.
// One variable exists per distinct project name; repeated steps against
// the same project keep the latest selection.
func (r *Record) Add(projectName string, buildNumber int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[Key(projectName)] = strconv.Itoa(buildNumber)
}

// Contribute copies the recorded variables into the build's environment
// map.
func (r *Record) Contribute(env map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.data {
		env[k] = v
	}
}

// Values returns a copy of the recorded variables.
func (r *Record) Values() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}
