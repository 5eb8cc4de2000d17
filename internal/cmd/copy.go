package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/goferry/internal/observability"
	"github.com/3leaps/goferry/pkg/buildenv"
	"github.com/3leaps/goferry/pkg/ferry"
	"github.com/3leaps/goferry/pkg/fingerprint"
	"github.com/3leaps/goferry/pkg/host"
	"github.com/3leaps/goferry/pkg/manifest"
	"github.com/3leaps/goferry/pkg/output"
	"github.com/3leaps/goferry/pkg/selector"
	"github.com/3leaps/goferry/pkg/storage"
	"github.com/3leaps/goferry/pkg/storage/file"
	"github.com/3leaps/goferry/pkg/storage/minio"
	"github.com/3leaps/goferry/pkg/storage/s3"
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Run copy steps from a manifest",
	Long: `Run the copy steps defined in a YAML or JSON manifest against a
host-state snapshot, replicating archived artifacts into the destination
build's workspace.

Example:
  goferry copy --manifest copy.yaml --state state.yaml --workspace ./ws --job downstream --build 7
  goferry copy --manifest copy.yaml --state state.yaml --workspace ./ws --job downstream --build 7 --output results.jsonl
  goferry copy --manifest copy.yaml --state state.yaml --dry-run`,
	RunE: runCopy,
}

var (
	copyManifestPath string
	copyStatePath    string
	copyWorkspace    string
	copyJob          string
	copyBuildNumber  int
	copyParams       []string
	copyOutput       string
	copyFingerprints string
	copyDryRun       bool
)

func init() {
	rootCmd.AddCommand(copyCmd)

	copyCmd.Flags().StringVarP(&copyManifestPath, "manifest", "m", "", "Path to copy manifest (required)")
	copyCmd.Flags().StringVar(&copyStatePath, "state", "", "Path to host-state snapshot (required)")
	copyCmd.Flags().StringVarP(&copyWorkspace, "workspace", "w", "", "Destination workspace directory")
	copyCmd.Flags().StringVar(&copyJob, "job", "", "Destination job full name")
	copyCmd.Flags().IntVar(&copyBuildNumber, "build", 0, "Destination build number")
	copyCmd.Flags().StringArrayVar(&copyParams, "param", nil, "Destination build parameter NAME=VALUE (repeatable)")
	copyCmd.Flags().StringVarP(&copyOutput, "output", "o", "", "Write JSONL records to file")
	copyCmd.Flags().StringVar(&copyFingerprints, "fingerprints", "", "Fingerprint store directory (overrides config)")
	copyCmd.Flags().BoolVar(&copyDryRun, "dry-run", false, "Validate manifest and show plan without executing")

	_ = copyCmd.MarkFlagRequired("manifest")
	_ = copyCmd.MarkFlagRequired("state")
}

func runCopy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(copyManifestPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", copyManifestPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	state, err := host.LoadState(copyStatePath)
	if err != nil {
		observability.CLILogger.Error("Failed to load host state",
			zap.String("path", copyStatePath),
			zap.Error(err))
		return exitError(foundry.ExitFileReadError, "Invalid host state", err)
	}
	jobs := state.Directory()

	if copyDryRun {
		return showCopyPlan(m, jobs)
	}

	if copyJob == "" || copyBuildNumber == 0 {
		return exitError(foundry.ExitInvalidArgument, "Missing destination",
			fmt.Errorf("--job and --build are required unless --dry-run"))
	}

	dst, err := destinationBuild(jobs)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid destination build", err)
	}

	profiles, err := buildProfiles(ctx, m)
	if err != nil {
		observability.CLILogger.Error("Failed to build storage profiles", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage profile", err)
	}
	defer profiles.Close()

	fpDir := cfg.Fingerprints.Dir
	if copyFingerprints != "" {
		fpDir = copyFingerprints
	}

	runID := uuid.New().String()
	writer, cleanup, err := createWriter(copyOutput, runID)
	if err != nil {
		observability.CLILogger.Error("Failed to create writer", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	deps := ferry.Deps{
		Jobs:         jobs,
		Profiles:     profiles,
		Fingerprints: fingerprint.NewStore(fpDir),
		Env:          buildenv.NewRecord(),
		Output:       writer,
		RunID:        runID,
	}

	observability.CLILogger.Info("Starting copy run",
		zap.String("run_id", runID),
		zap.String("destination", dst.DisplayName()),
		zap.Int("steps", len(m.Steps)))

	env := host.EnvVars(deps.Env.Values())
	failed := 0
	for _, sc := range m.Steps {
		step := buildStep(sc)
		ok, err := step.Perform(ctx, deps, dst, env, copyWorkspace, os.Stdout)
		if err != nil {
			if ctx.Err() != nil {
				observability.CLILogger.Warn("Copy run cancelled",
					zap.String("run_id", runID))
				return exitError(foundry.ExitSignalInt, "Copy run cancelled", err)
			}
			logStepFailure(sc.Project, err)
			failed++
			continue
		}
		if !ok {
			logStepFailure(sc.Project, nil)
			failed++
		}
		// Later steps see the build numbers recorded by earlier ones.
		env = host.EnvVars(deps.Env.Values()).Override(dst.Params)
	}

	if failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Copy run failed",
			fmt.Errorf("%d of %d steps failed", failed, len(m.Steps)))
	}

	observability.CLILogger.Info("Copy run completed",
		zap.String("run_id", runID),
		zap.Int("steps", len(m.Steps)))
	return nil
}

// destinationBuild resolves or synthesizes the running destination build.
func destinationBuild(jobs *host.Directory) (*host.Build, error) {
	params := make(map[string]string, len(copyParams))
	for _, p := range copyParams {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed --param %q, want NAME=VALUE", p)
		}
		params[name] = value
	}

	job := jobs.LookupByFullName(copyJob)
	if job == nil {
		return nil, fmt.Errorf("destination job not found in state: %s", copyJob)
	}
	if b := job.Build(copyBuildNumber); b != nil {
		if len(params) > 0 {
			merged := make(map[string]string, len(b.Params)+len(params))
			for k, v := range b.Params {
				merged[k] = v
			}
			for k, v := range params {
				merged[k] = v
			}
			b.Params = merged
		}
		return b, nil
	}
	// The destination build is usually the one currently running and
	// absent from the snapshot.
	return &host.Build{
		JobName: copyJob,
		Number:  copyBuildNumber,
		Status:  host.StatusRunning,
		Params:  params,
	}, nil
}

// buildStep converts a manifest step into an executable one.
func buildStep(sc manifest.StepConfig) *ferry.Step {
	filter := sc.Filter
	if filter == "" {
		filter = cfg.Copy.DefaultFilter
	}
	var sel selector.Selector
	switch {
	case sc.Selector.BuildNumber > 0:
		sel = selector.NumberSelector{Number: sc.Selector.BuildNumber}
	case sc.Selector.StableOnly:
		sel = selector.StatusSelector{StableOnly: true}
	}
	return &ferry.Step{
		ProjectName: sc.Project,
		Selector:    sel,
		Filter:      filter,
		Target:      sc.Target,
		Flatten:     sc.Flatten,
		Optional:    sc.Optional,
	}
}

// buildProfiles creates the storage backend registry from manifest profiles.
func buildProfiles(ctx context.Context, m *manifest.Manifest) (*storage.Registry, error) {
	reg := storage.NewRegistry()
	for id, pc := range m.Profiles {
		backend, err := buildBackend(ctx, pc)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		reg.Register(id, backend)
	}
	return reg, nil
}

func buildBackend(ctx context.Context, pc manifest.ProfileConfig) (storage.Backend, error) {
	switch pc.Backend {
	case "s3":
		return s3.New(ctx, s3.Config{
			Bucket:          pc.Bucket,
			Region:          pc.Region,
			Endpoint:        pc.Endpoint,
			AccessKeyID:     pc.AccessKey,
			SecretAccessKey: pc.SecretKey,
			ForcePathStyle:  pc.PathStyle || pc.Endpoint != "",
		})
	case "minio":
		return minio.New(minio.Config{
			Endpoint:  pc.Endpoint,
			AccessKey: pc.AccessKey,
			SecretKey: pc.SecretKey,
			Region:    pc.Region,
			UseSSL:    !pc.Insecure,
			Bucket:    pc.Bucket,
		})
	case "file":
		return file.New(file.Config{BaseDir: pc.BaseDir})
	default:
		return nil, fmt.Errorf("unsupported backend: %s", pc.Backend)
	}
}

// createWriter creates the JSONL record writer. An empty path discards
// records.
func createWriter(path, runID string) (output.Writer, func(), error) {
	if path == "" {
		return output.Discard, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	w := output.NewJSONLWriter(f, runID)
	return w, func() {
		_ = w.Close()
		_ = f.Close()
	}, nil
}

// showCopyPlan validates the steps and displays what would run.
func showCopyPlan(m *manifest.Manifest, jobs *host.Directory) error {
	fmt.Println("=== Copy Plan (dry-run) ===")
	fmt.Println()
	warned := false
	for i, sc := range m.Steps {
		step := buildStep(sc)
		fmt.Printf("Step %d:\n", i+1)
		fmt.Printf("  Project:  %s\n", sc.Project)
		if sc.Selector.BuildNumber > 0 {
			fmt.Printf("  Selector: build #%d\n", sc.Selector.BuildNumber)
		} else if sc.Selector.StableOnly {
			fmt.Println("  Selector: latest stable")
		} else {
			fmt.Println("  Selector: latest successful or unstable")
		}
		if step.Filter != "" {
			fmt.Printf("  Filter:   %s\n", step.Filter)
		}
		if sc.Target != "" {
			fmt.Printf("  Target:   %s\n", sc.Target)
		}
		fmt.Printf("  Flatten:  %v\n", sc.Flatten)
		fmt.Printf("  Optional: %v\n", sc.Optional)
		for _, w := range step.Validate(jobs) {
			warned = true
			fmt.Printf("  WARNING:  %s\n", w)
		}
		fmt.Println()
	}
	fmt.Printf("Profiles: %d configured\n", len(m.Profiles))
	if warned {
		fmt.Println("Manifest validated with warnings. Remove --dry-run to execute.")
	} else {
		fmt.Println("Manifest validated successfully. Remove --dry-run to execute.")
	}
	return nil
}
