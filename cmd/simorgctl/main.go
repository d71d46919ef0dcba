// simorgctl drives the kernel, generator and cluster packages directly:
// there is no HTTP facade in front of them, so unlike a typical service
// CLI this one never makes a network call. Every subcommand loads or
// produces an event stream, replays it in process, and prints the
// result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fthyco/simorg/infrastructure/config"
	"github.com/fthyco/simorg/infrastructure/logging"
	"github.com/fthyco/simorg/infrastructure/metrics"
	"github.com/fthyco/simorg/internal/cluster"
	"github.com/fthyco/simorg/internal/cluster/rediscache"
	"github.com/fthyco/simorg/internal/generator"
	"github.com/fthyco/simorg/internal/kernel"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	root := flag.NewFlagSet("simorgctl", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	if err := root.Parse(args); err != nil {
		return usageError(err)
	}

	remaining := root.Args()
	if len(remaining) == 0 {
		return usageError(errors.New("no command specified"))
	}

	log := logging.NewFromEnv("simorgctl")
	met := metrics.New("simorgctl")

	switch remaining[0] {
	case "generate":
		return handleGenerate(ctx, log, met, remaining[1:])
	case "replay":
		return handleReplay(ctx, log, met, remaining[1:])
	case "diagnostics":
		return handleDiagnostics(ctx, log, remaining[1:])
	case "clusters":
		return handleClusters(ctx, log, met, remaining[1:])
	case "hash":
		return handleHash(remaining[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		return usageError(fmt.Errorf("unknown command %q", remaining[0]))
	}
}

func usageError(err error) error {
	printRootUsage()
	return err
}

func printRootUsage() {
	fmt.Println(`simorgctl - organization state machine toolkit

Usage:
  simorgctl <command> [flags]

Commands:
  generate      Compile a seeded event stream from the built-in tech_saas/seed template
  replay        Replay an event stream from a JSON file and print the resulting snapshot
  diagnostics   Replay a stream and print its structural diagnostics
  clusters      Replay a stream and print its role clusters and department projection
  hash          Print the canonical state hash for a snapshot file
  help          Show this message`)
}

// handleGenerate compiles a deterministic stream from the built-in
// tech_saas/seed template and writes it as a JSON event array, along
// with the department map the template declares.
func handleGenerate(ctx context.Context, log *logging.Logger, met *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	seed := fs.Int64("seed", config.GetEnvInt64("SIMORG_SEED", 1), "deterministic PRNG seed")
	intraDensity := fs.Int64("intra-density", 5000, "intra-department density target, SCALE-relative (0-10000)")
	capacityProfile := fs.String("capacity", "balanced", "capacity profile: low, balanced, high")
	fragility := fs.Bool("fragility", false, "enable hub-concentration fragility pass")
	shock := fs.Int64("shock", 0, "shock magnitude injected onto the template's first role (0 disables)")
	out := fs.String("out", "", "write the event stream to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	spec := generator.TemplateSpec{
		RoleCount:          5,
		DomainCount:        2,
		IntraDensityTarget: *intraDensity,
		CapacityProfile:    generator.CapacityProfile(*capacityProfile),
		FragilityMode:      *fragility,
		ShockMagnitude:     *shock,
	}

	events, deptMap, err := generator.CompileFromTemplate(generator.TechSaaSSeed(), spec, *seed)
	log.LogGeneratorRun(ctx, "tech_saas/seed", spec.RoleCount, err)
	if err != nil {
		met.RecordError("simorgctl", "generator_invariant", "generate")
		return err
	}

	envelope := struct {
		Events      []kernel.Event          `json:"events"`
		Departments generator.DepartmentMap `json:"department_map"`
	}{Events: events, Departments: deptMap}

	raw, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(*out, raw)
}

// handleReplay reads a JSON array of kernel events from a file (or
// stdin if path is "-") and replays them through a fresh engine,
// printing the resulting snapshot.
func handleReplay(ctx context.Context, log *logging.Logger, met *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	in := fs.String("in", "", "path to a JSON event stream file, or - for stdin (required)")
	out := fs.String("out", "", "write the resulting snapshot to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("--in is required")
	}

	events, err := readEventStream(*in)
	if err != nil {
		return err
	}

	start := time.Now()
	engine := kernel.NewEngine()
	state, err := engine.Replay(events)
	log.LogReplay(ctx, *in, len(events), time.Since(start), err)
	if err != nil {
		met.RecordError("simorgctl", "replay_rejected", "replay")
		return err
	}

	raw, err := kernel.EncodeSnapshot(state)
	if err != nil {
		return err
	}
	return writeOutput(*out, raw)
}

// handleDiagnostics replays a stream and prints kernel.ComputeDiagnostics.
func handleDiagnostics(ctx context.Context, log *logging.Logger, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	in := fs.String("in", "", "path to a JSON event stream file, or - for stdin (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("--in is required")
	}

	events, err := readEventStream(*in)
	if err != nil {
		return err
	}

	engine := kernel.NewEngine()
	state, err := engine.Replay(events)
	if err != nil {
		return err
	}

	diag := kernel.ComputeDiagnostics(state)
	raw, err := json.MarshalIndent(diag, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

// handleClusters replays a stream, clusters its roles, and projects a
// department view through a FingerprintCache keyed by --stream. Without
// --redis-url the cache is a fresh in-process one, so every run
// recomputes; with --redis-url the cache is shared, and a run against a
// stream key whose topology fingerprint is unchanged reuses the stored
// clusters.
func handleClusters(ctx context.Context, log *logging.Logger, met *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("clusters", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	in := fs.String("in", "", "path to a JSON event stream file, or - for stdin (required)")
	streamKey := fs.String("stream", "default", "stream key used to key the projection cache")
	redisURL := fs.String("redis-url", "", "optional redis URL for a shared FingerprintCache (e.g. redis://localhost:6379/0); defaults to an in-process cache")
	redisTTL := fs.Duration("redis-ttl", 10*time.Minute, "cache entry TTL when --redis-url is set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("--in is required")
	}

	events, err := readEventStream(*in)
	if err != nil {
		return err
	}

	engine := kernel.NewEngine()
	state, err := engine.Replay(events)
	if err != nil {
		return err
	}

	var cache cluster.FingerprintCache
	if *redisURL != "" {
		redisCache, err := rediscache.New(*redisURL, *redisTTL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		cache = redisCache
	} else {
		cache = cluster.NewMemoryFingerprintCache(0)
	}
	svc := cluster.NewProjectionService(cache)
	clusters := svc.Recompute(ctx, *streamKey, state)
	met.ObserveClusterCount("simorgctl", *streamKey, len(clusters))

	departments, err := cluster.ProjectDepartments(state, clusters)
	log.LogProjection(ctx, "clusters", true, err)
	if err != nil {
		return err
	}

	envelope := struct {
		Clusters    []cluster.Cluster    `json:"clusters"`
		Departments []cluster.Department `json:"departments"`
	}{Clusters: clusters, Departments: departments}

	raw, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

// handleHash prints the canonical state hash of a decoded snapshot
// file, the same hash two independently replayed but semantically
// identical streams must agree on.
func handleHash(args []string) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	in := fs.String("in", "", "path to a JSON snapshot file, or - for stdin (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("--in is required")
	}

	raw, err := readFile(*in)
	if err != nil {
		return err
	}
	state, err := kernel.DecodeSnapshot(raw)
	if err != nil {
		return err
	}
	fmt.Println(kernel.CanonicalHash(state))
	return nil
}

func readEventStream(path string) ([]kernel.Event, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Events []kernel.Event `json:"events"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Events) > 0 {
		return stampMissingUUIDs(envelope.Events), nil
	}

	var events []kernel.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decoding event stream: %w", err)
	}
	return stampMissingUUIDs(events), nil
}

// stampMissingUUIDs assigns a fresh event UUID to any event submitted
// without one. The generator leaves EventUUID empty for determinism;
// a live operator loading a hand-written or generated stream still
// gets a traceable id per event from here on.
func stampMissingUUIDs(events []kernel.Event) []kernel.Event {
	for i := range events {
		if events[i].EventUUID == "" {
			events[i].EventUUID = uuid.New().String()
		}
	}
	return events
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, raw []byte) error {
	if path == "" {
		fmt.Println(string(raw))
		return nil
	}
	return os.WriteFile(path, raw, 0o644)
}
