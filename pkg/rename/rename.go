// Package rename rewrites stored job references after a job is renamed
// on the host. It is a maintenance task driven by the host's rename
// notification, operating over an injected enumeration of step
// configurations rather than reaching into host storage itself.
package rename

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyName is returned when a task is run with a blank old or new
// job name.
var ErrEmptyName = errors.New("rename: job name must not be empty")

// Rewrite maps a single job reference from oldName to newName. A
// reference matches when it equals oldName exactly or starts with
// oldName followed by a '/' (the sub-filter suffix form, which is
// preserved). References where oldName is merely a substring are left
// alone. The second return reports whether the reference changed.
func Rewrite(ref, oldName, newName string) (string, bool) {
	if ref == oldName {
		return newName, true
	}
	if strings.HasPrefix(ref, oldName+"/") {
		return newName + strings.TrimPrefix(ref, oldName), true
	}
	return ref, false
}

// Binding is one stored step configuration referencing a source job.
type Binding interface {
	// ProjectName returns the configured reference, possibly carrying a
	// "/filter" suffix or $VAR placeholders.
	ProjectName() string

	// SetProjectName replaces the configured reference.
	SetProjectName(name string)
}

// Source enumerates stored bindings and persists the ones the task
// touches.
type Source interface {
	Bindings() ([]Binding, error)
	Save(b Binding) error
}

// Task is one job rename to apply.
type Task struct {
	OldName string
	NewName string
}

// Run rewrites every binding that references the renamed job and saves
// only the touched ones. It is best-effort: a failed save does not stop
// the pass, and all save errors are joined into the returned error. The
// count reports bindings successfully rewritten and saved.
func (t *Task) Run(src Source) (int, error) {
	if t.OldName == "" || t.NewName == "" {
		return 0, ErrEmptyName
	}

	bindings, err := src.Bindings()
	if err != nil {
		return 0, fmt.Errorf("enumerate bindings: %w", err)
	}

	touched := 0
	var saveErrs []error
	for _, b := range bindings {
		next, changed := Rewrite(b.ProjectName(), t.OldName, t.NewName)
		if !changed {
			continue
		}
		b.SetProjectName(next)
		if err := src.Save(b); err != nil {
			saveErrs = append(saveErrs, fmt.Errorf("save %q: %w", next, err))
			continue
		}
		touched++
	}
	return touched, errors.Join(saveErrs...)
}
