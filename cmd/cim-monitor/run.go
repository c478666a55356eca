package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ehrlich-b/cinch/blobstore"
	"github.com/ehrlich-b/cinch/config"
	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/forge"
	"github.com/ehrlich-b/cinch/ledger"
	"github.com/ehrlich-b/cinch/objstore"
	"github.com/ehrlich-b/cinch/ref"
	"github.com/ehrlich-b/cinch/scheduler"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl the configured forge instance to quiescence",
		RunE:  runRun,
	}
	cmd.Flags().StringP("config-dir", "c", ".", "Directory to look for a cim-monitor config file in")
	cmd.Flags().StringP("instance-url", "i", "", "Forge instance URL (overrides the config file)")
	cmd.Flags().StringP("token", "t", "", "Forge access token (overrides the config file; prompts if omitted entirely)")
	cmd.Flags().IntSlice("project", nil, "Forge project ID to seed an UpdateProject task for (repeatable)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	instanceURL, _ := cmd.Flags().GetString("instance-url")
	token, _ := cmd.Flags().GetString("token")
	projects, _ := cmd.Flags().GetIntSlice("project")

	cfg, _, err := config.Load(configDir)
	if err != nil && err != config.ErrNoConfig {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if instanceURL != "" {
		cfg.InstanceURL = instanceURL
	}
	if token != "" {
		cfg.Token = token
	}
	if cfg.InstanceURL == "" {
		return fmt.Errorf("no forge instance URL: pass --instance-url or set it in the config file")
	}
	if cfg.Token == "" {
		prompted, err := promptForToken(cmd)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		cfg.Token = prompted
	}
	if cfg.Token == "" {
		return fmt.Errorf("no forge token: pass --token, set it in the config file, or enter it when prompted")
	}
	cfg.ApplyDefaults()

	log := slog.Default()

	store, err := openStore(cfg.ObjectStorePath)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	algo, ok := entity.ParseContentHash(cfg.BlobStore.Algo)
	if !ok {
		return fmt.Errorf("blob_store.algo %q is not a known content hash", cfg.BlobStore.Algo)
	}
	blobs, err := blobstore.OpenOrCreateFilesystemStore(
		cfg.BlobStore.Root, algo, blobstore.DefaultSharding(), log)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	instance := instanceFor(cfg.InstanceURL)
	if existing, ok := findInstance(store, instance); ok {
		instance, _ = store.LookupInstance(existing)
	} else {
		store.StoreInstance(instance)
	}

	adapter := forge.NewGitlab(store, blobs, instance, cfg.InstanceURL, cfg.Token)

	led, err := openLedger(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer led.Close()

	limiter := scheduler.NewRateLimiter(cfg.RateLimit.PermitsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.Jitter.Duration())
	sched := scheduler.New(&ledgerForge{Forge: adapter, ledger: led, log: log}, limiter, log)

	sched.Enqueue(forge.DiscoverRunners{})
	for _, p := range projects {
		sched.Enqueue(forge.UpdateProject{Project: p})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runErr := sched.Run(ctx)

	if cfg.ObjectStorePath != "" {
		if err := objstore.Save(store, cfg.ObjectStorePath); err != nil {
			return fmt.Errorf("save object store: %w", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("scheduler: %w", runErr)
	}
	return nil
}

func openStore(path string) (*objstore.VectorStore, error) {
	if path == "" {
		return objstore.NewVectorStore(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return objstore.NewVectorStore(), nil
	}
	return objstore.Load(path)
}

func openLedger(cfg config.Ledger) (ledger.Ledger, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "cim-monitor-ledger.db"
		}
		return ledger.NewSQLite(dsn)
	case "postgres":
		return ledger.NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// promptForToken reads a forge token from the terminal without echoing
// it, falling back to an error if stdin isn't a terminal (e.g. piped
// input in CI, where the caller should pass --token instead).
func promptForToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; pass --token explicitly")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Forge token: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// instanceFor builds an Instance for a forge URL. UniqueID is derived
// deterministically from the URL so re-running against the same
// instance finds the same record instead of minting a duplicate.
func instanceFor(url string) entity.Instance {
	h := fnv.New64a()
	h.Write([]byte(url))
	v, _ := entity.NewInstanceBuilder().UniqueID(h.Sum64()).Forge("gitlab").URL(url).Build()
	return v
}

func findInstance(store *objstore.VectorStore, want entity.Instance) (ref.Ref[entity.Instance], bool) {
	for _, r := range store.AllInstanceRefs() {
		v, ok := store.LookupInstance(r)
		if ok && v.UniqueID == want.UniqueID && v.Forge == want.Forge {
			return r, true
		}
	}
	return ref.Ref[entity.Instance]{}, false
}

// ledgerForge wraps a forge.Forge, recording every task execution to a
// ledger without changing the scheduler's own result-handling logic.
type ledgerForge struct {
	forge.Forge
	ledger ledger.Ledger
	log    *slog.Logger
}

func (l *ledgerForge) RunTask(ctx context.Context, task forge.Task) (forge.Outcome, error) {
	start := time.Now()
	outcome, err := l.Forge.RunTask(ctx, task)

	entry := ledger.Entry{
		ID:         uuid.NewString(),
		TaskKind:   string(task.TaskKind()),
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	if err != nil {
		entry.Outcome = "failure"
		entry.Detail = err.Error()
	} else {
		entry.Outcome = "success"
	}
	if recErr := l.ledger.Record(ctx, entry); recErr != nil {
		l.log.Error("ledger record failed", "task", entry.TaskKind, "error", recErr)
	}

	return outcome, err
}
