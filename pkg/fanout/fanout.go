// Package fanout expands a selected source build into the ordered list of
// copy units that must each be replicated.
//
// A plain build yields one unit. A module-aggregate build yields the
// aggregate plus each module's last build, all merged into the base target
// directory. A matrix build yields one unit per axis run, each addressed
// to a subdirectory named after the axis combination so artifacts with
// identical names never collide on disk.
package fanout

import (
	"path/filepath"

	"github.com/3leaps/goferry/pkg/host"
)

// CopyUnit is the unit of replication work: one source build addressed to
// one target directory.
type CopyUnit struct {
	Source    *host.Build
	TargetDir string
}

// Expand resolves the build's kind once and produces its copy units.
func Expand(src *host.Build, baseDir string) []CopyUnit {
	switch src.Kind {
	case host.KindModuleAggregate:
		// The aggregate covers artifacts archived by the top-level run;
		// module artifacts merge into the same tree.
		units := []CopyUnit{{Source: src, TargetDir: baseDir}}
		for _, m := range src.Modules {
			units = append(units, CopyUnit{Source: m, TargetDir: baseDir})
		}
		return units
	case host.KindMatrix:
		var units []CopyUnit
		for _, r := range src.AxisRuns {
			if !r.Status.Completed() {
				continue
			}
			units = append(units, CopyUnit{
				Source:    r,
				TargetDir: filepath.Join(baseDir, r.Axis),
			})
		}
		return units
	default:
		return []CopyUnit{{Source: src, TargetDir: baseDir}}
	}
}
