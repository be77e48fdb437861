package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/BearBump/VaultTrack/config"
	"github.com/BearBump/VaultTrack/internal/fingerprint"
	"github.com/BearBump/VaultTrack/internal/jobs"
	"github.com/BearBump/VaultTrack/internal/services/catalogsync"
	"github.com/BearBump/VaultTrack/internal/services/matching"
)

func newRootCommand(d ctlDeps) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "vaultctl",
		Short: "VaultTrack operations CLI",
		Long: `vaultctl fingerprints card photos, matches them against the catalog
and runs or queues the catalog sync jobs.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("configPath"), "Path to config.yaml")

	load := func() (*config.Config, error) {
		return d.loadConfig(configPath)
	}
	cmd.AddCommand(
		newHashCmd(),
		newDistanceCmd(),
		newMatchCmd(d, load),
		newSyncCmd(d, load),
	)
	return cmd
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <image>...",
		Short: "Print the fingerprint of each image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				fp, err := hashFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", fp, path)
			}
			return nil
		},
	}
}

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance <a> <b>",
		Short: "Hamming distance between two fingerprints or images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := fingerprintArg(args[0])
			if err != nil {
				return err
			}
			b, err := fingerprintArg(args[1])
			if err != nil {
				return err
			}
			regions := fingerprint.RegionDistances(a, b)
			fmt.Fprintf(cmd.OutOrStdout(), "%d %v\n", fingerprint.Distance(a, b), regions)
			return nil
		},
	}
}

func newMatchCmd(d ctlDeps, load func() (*config.Config, error)) *cobra.Command {
	var threshold, limit int
	cmd := &cobra.Command{
		Use:   "match <image>",
		Short: "Identify a card photo against the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read image")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			st, closeFn, err := d.openStore(cfg)
			if err != nil {
				return errors.Wrap(err, "open store")
			}
			defer closeFn()

			if threshold <= 0 {
				threshold = cfg.Vault.MatchThreshold
			}
			// без кэша: каталог читается напрямую из БД
			svc := matching.New(st, nil, 0).WithThreshold(threshold).WithLimit(limit)
			id, err := svc.Identify(cmd.Context(), img)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), id)
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Max Hamming distance for a match (default from config or 40)")
	cmd.Flags().IntVar(&limit, "limit", fingerprint.DefaultRankLimit, "How many ranked candidates to print")
	return cmd
}

func newSyncCmd(d ctlDeps, load func() (*config.Config, error)) *cobra.Command {
	var enqueue bool
	var limit int
	cmd := &cobra.Command{
		Use:       "sync <catalog|prices|fingerprints>",
		Short:     "Run a catalog sync job now, or queue it for the worker",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.JobCatalog, jobs.JobPrices, jobs.JobFingerprints},
		RunE: func(cmd *cobra.Command, args []string) error {
			job := args[0]
			if _, err := jobs.NewTask(job); err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = config.Or(cfg.Sync.BackfillLimit, jobs.DefaultBackfillLimit)
			}
			if enqueue {
				return enqueueJob(cmd, d, cfg, job, limit)
			}
			return runJob(cmd, d, cfg, job, limit)
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the job for vault-worker instead of running it here")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max entries for the fingerprints job")
	return cmd
}

func enqueueJob(cmd *cobra.Command, d ctlDeps, cfg *config.Config, job string, limit int) error {
	q, closeFn, err := d.newEnqueuer(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	task, err := jobs.NewTask(job)
	if err != nil {
		return err
	}
	if job == jobs.JobFingerprints {
		if task, err = jobs.NewBackfillTask(limit); err != nil {
			return err
		}
	}
	info, err := jobs.EnqueueTask(cmd.Context(), q, task)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	return nil
}

func runJob(cmd *cobra.Command, d ctlDeps, cfg *config.Config, job string, limit int) error {
	st, closeFn, err := d.openStore(cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeFn()

	inv := matching.New(st, d.newCache(cfg), config.Seconds(cfg.Vault.FingerprintCacheTTLSeconds, time.Hour))
	s := catalogsync.New(d.newUpstream(cfg), st, inv).WithSettings(catalogsync.Settings{
		CallDelay:    config.Millis(cfg.Sync.CallDelayMillis, catalogsync.DefaultCallDelay),
		PricingDelay: config.Millis(cfg.Sync.PricingDelayMillis, catalogsync.DefaultPricingDelay),
		ChunkSize:    cfg.Sync.ChunkSize,
	})

	var res any
	switch job {
	case jobs.JobCatalog:
		res, err = s.SyncCatalog(cmd.Context())
	case jobs.JobPrices:
		res, err = s.SyncPrices(cmd.Context())
	case jobs.JobFingerprints:
		res, err = s.BackfillFingerprints(cmd.Context(), limit)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func hashFile(path string) (fingerprint.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return fingerprint.Fingerprint{}, errors.Wrap(err, "open image")
	}
	defer f.Close()
	fp, err := fingerprint.HashReader(f)
	if err != nil {
		return fingerprint.Fingerprint{}, errors.Wrap(err, path)
	}
	return fp, nil
}

// fingerprintArg accepts a hex fingerprint or a path to an image.
func fingerprintArg(s string) (fingerprint.Fingerprint, error) {
	if fp, err := fingerprint.Parse(s); err == nil {
		return fp, nil
	}
	return hashFile(s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
