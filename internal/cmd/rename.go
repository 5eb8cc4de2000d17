package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/goferry/internal/observability"
	"github.com/3leaps/goferry/pkg/manifest"
	"github.com/3leaps/goferry/pkg/rename"
)

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rewrite manifest references after a job rename",
	Long: `Rewrite every step in a copy manifest that references a renamed job,
preserving any "/name=value" sub-filter suffix. Invoked from the host's
rename notification hook.

Example:
  goferry rename --manifest copy.yaml --from old-job --to new-job`,
	RunE: runRename,
}

var (
	renameManifestPath string
	renameFrom         string
	renameTo           string
)

func init() {
	rootCmd.AddCommand(renameCmd)

	renameCmd.Flags().StringVarP(&renameManifestPath, "manifest", "m", "", "Path to copy manifest (required)")
	renameCmd.Flags().StringVar(&renameFrom, "from", "", "Old job full name (required)")
	renameCmd.Flags().StringVar(&renameTo, "to", "", "New job full name (required)")

	_ = renameCmd.MarkFlagRequired("manifest")
	_ = renameCmd.MarkFlagRequired("from")
	_ = renameCmd.MarkFlagRequired("to")
}

func runRename(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(renameManifestPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", renameManifestPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	src := &manifestSource{m: m}
	task := &rename.Task{OldName: renameFrom, NewName: renameTo}
	touched, err := task.Run(src)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Rename failed", err)
	}

	if touched == 0 {
		fmt.Printf("No references to %q in %s\n", renameFrom, renameManifestPath)
		return nil
	}

	if err := manifest.Save(m, renameManifestPath); err != nil {
		observability.CLILogger.Error("Failed to save manifest",
			zap.String("path", renameManifestPath),
			zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to save manifest", err)
	}

	observability.CLILogger.Info("Rewrote job references",
		zap.String("from", renameFrom),
		zap.String("to", renameTo),
		zap.Int("steps", touched))
	fmt.Printf("Rewrote %d reference(s): %s -> %s\n", touched, renameFrom, renameTo)
	return nil
}

// manifestSource adapts a loaded manifest's steps to the rename task.
// Persistence happens once after the task runs, so Save only acknowledges
// the touch.
type manifestSource struct {
	m *manifest.Manifest
}

func (s *manifestSource) Bindings() ([]rename.Binding, error) {
	bindings := make([]rename.Binding, len(s.m.Steps))
	for i := range s.m.Steps {
		bindings[i] = (*stepBinding)(&s.m.Steps[i])
	}
	return bindings, nil
}

func (s *manifestSource) Save(rename.Binding) error { return nil }

type stepBinding manifest.StepConfig

func (b *stepBinding) ProjectName() string        { return b.Project }
func (b *stepBinding) SetProjectName(name string) { b.Project = name }
