// cmd/tools/profile-tool/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"swipestats-workers/internal/common/camunda"
	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/ingest/consent"
	"swipestats-workers/internal/ingest/pipeline"
	"swipestats-workers/internal/ingest/stats"
	"swipestats-workers/internal/models"
	ingestupload "swipestats-workers/internal/workers/ingestion/ingest-upload"
	"swipestats-workers/pkg/registry"
)

const ingestProcessID = "profile-ingest"

func main() {
	normalizeCmd := flag.NewFlagSet("normalize", flag.ExitOnError)
	consentFlags := normalizeCmd.String("consent", "", "Consent flags, e.g. photos=false,shareMessages=false")
	outDir := normalizeCmd.String("out", "", "Directory for <profileId>.json files (default: stdout)")
	parallel := normalizeCmd.Int("parallel", 4, "Files normalized concurrently")

	mergeCmd := flag.NewFlagSet("merge", flag.ExitOnError)
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)

	activitiesCmd := flag.NewFlagSet("activities", flag.ExitOnError)
	registryPath := activitiesCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	gateway := submitCmd.String("gateway", envOr("ZEEBE_ADDRESS", "localhost:26500"), "Zeebe gateway address")
	processID := submitCmd.String("process", ingestProcessID, "BPMN process id to start")
	submitConsent := submitCmd.String("consent", "", "Consent flags, e.g. photos=false")
	submitRegistry := submitCmd.String("registry", "configs/activity-registry.json", "Activity registry used to check the variables")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "normalize":
		normalizeCmd.Parse(os.Args[2:])
		if normalizeCmd.NArg() == 0 {
			fmt.Println("Error: at least one export file is required.")
			normalizeCmd.Usage()
			os.Exit(1)
		}
		var decl models.ConsentDeclaration
		decl, err = parseConsent(*consentFlags)
		if err == nil {
			err = runNormalize(context.Background(), normalizeCmd.Args(), decl, *outDir, *parallel, os.Stdout)
		}

	case "merge":
		mergeCmd.Parse(os.Args[2:])
		if mergeCmd.NArg() != 2 {
			fmt.Println("Error: merge takes <old-profile.json> <new-profile.json>.")
			os.Exit(1)
		}
		err = runMerge(mergeCmd.Arg(0), mergeCmd.Arg(1), os.Stdout)

	case "stats":
		statsCmd.Parse(os.Args[2:])
		if statsCmd.NArg() != 1 {
			fmt.Println("Error: stats takes <profile.json>.")
			os.Exit(1)
		}
		err = runStats(statsCmd.Arg(0), os.Stdout)

	case "submit":
		submitCmd.Parse(os.Args[2:])
		if submitCmd.NArg() == 0 {
			fmt.Println("Error: at least one export file is required.")
			submitCmd.Usage()
			os.Exit(1)
		}
		var decl models.ConsentDeclaration
		decl, err = parseConsent(*submitConsent)
		if err != nil {
			break
		}
		ctx := context.Background()
		var zeebe *camunda.Client
		zeebe, err = camunda.NewClient(ctx, *gateway)
		if err != nil {
			break
		}
		defer zeebe.Close()
		err = runSubmit(ctx, zeebe, *submitRegistry, *processID, submitCmd.Args(), decl, os.Stdout)

	case "activities":
		activitiesCmd.Parse(os.Args[2:])
		err = runActivities(*registryPath, os.Stdout)

	case "help":
		help()
		return

	default:
		help()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func help() {
	fmt.Println(`Usage: profile-tool <command> [arguments]

Commands:
  normalize [-consent k=v,...] [-out dir] [-parallel n] <export.json>...
                                  Normalize exports, apply consent and attach stats
  merge <old.json> <new.json>     Merge two normalized profiles of the same account
  stats <profile.json>            Print derived stats of a normalized profile
  submit [-gateway addr] [-process id] [-consent k=v,...] <export.json>...
                                  Start one ingest process instance per export
  activities [-path file]         Validate the activity registry`)
}

// parseConsent reads "flag=bool" pairs separated by commas.
func parseConsent(s string) (models.ConsentDeclaration, error) {
	decl := models.ConsentDeclaration{}
	if strings.TrimSpace(s) == "" {
		return decl, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("consent flag %q: expected key=value", pair)
		}
		granted, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("consent flag %q: %w", key, err)
		}
		decl[key] = granted
	}
	return decl, nil
}

func runNormalize(ctx context.Context, files []string, decl models.ConsentDeclaration, outDir string, parallel int, stdout io.Writer) error {
	profiles := make([]*models.NormalizedProfile, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := normalizeFile(file, decl)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			profiles[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range profiles {
		if outDir == "" {
			if err := writeJSON(stdout, p); err != nil {
				return err
			}
			continue
		}
		path := filepath.Join(outDir, p.ProfileID+".json")
		if err := writeFile(path, p); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %s\n", p.Platform, path)
	}
	return nil
}

func normalizeFile(path string, decl models.ConsentDeclaration) (*models.NormalizedProfile, error) {
	var raw models.RawExport
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	p, err := pipeline.Normalize(raw)
	if err != nil {
		if std := apperrors.FromError(err); std.Code != apperrors.ErrCodeInternal {
			return nil, fmt.Errorf("%s: %s", std.Code, std.Details)
		}
		return nil, err
	}
	return stats.Attach(consent.Apply(p, decl)), nil
}

func runMerge(oldPath, newPath string, stdout io.Writer) error {
	var old, latest models.NormalizedProfile
	if err := readJSON(oldPath, &old); err != nil {
		return err
	}
	if err := readJSON(newPath, &latest); err != nil {
		return err
	}
	merged, err := pipeline.Merge(&old, &latest)
	if err != nil {
		return err
	}
	return writeJSON(stdout, merged)
}

func runStats(path string, stdout io.Writer) error {
	var p models.NormalizedProfile
	if err := readJSON(path, &p); err != nil {
		return err
	}
	return writeJSON(stdout, stats.Aggregate(&p))
}

func runActivities(path string, stdout io.Writer) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	for _, a := range reg.Activities {
		fmt.Fprintf(stdout, "%-18s %-12s timeout=%s retries=%d\n", a.TaskType, a.Category, a.Timeout, a.Retries)
	}
	fmt.Fprintf(stdout, "Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

type processStarter interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// runSubmit checks each export against the ingest-upload input schema before starting an instance,
// so a malformed file never reaches the broker.
func runSubmit(ctx context.Context, starter processStarter, registryPath, processID string, files []string, decl models.ConsentDeclaration, stdout io.Writer) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	activity, ok := reg.Find(ingestupload.TaskType)
	if !ok {
		return fmt.Errorf("registry has no %s activity", ingestupload.TaskType)
	}

	for _, path := range files {
		input := ingestupload.Input{UploadID: uuid.NewString(), Consent: decl}
		if err := readJSON(path, &input.Export); err != nil {
			return err
		}

		vars, err := toVariables(input)
		if err != nil {
			return err
		}
		res, err := activity.ValidateInput(vars)
		if err != nil {
			return err
		}
		if first := res.First(); first != nil {
			return fmt.Errorf("%s: %s: %s", filepath.Base(path), first.Field, first.Message)
		}

		key, err := starter.StartProcess(ctx, processID, input)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		fmt.Fprintf(stdout, "%s uploadId=%s processInstanceKey=%d\n", filepath.Base(path), input.UploadID, key)
	}
	return nil
}

func toVariables(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var vars map[string]interface{}
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
