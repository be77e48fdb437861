package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/services/catalogsync"
)

type Syncer interface {
	SyncCatalog(ctx context.Context) (catalogsync.CatalogResult, error)
	SyncPrices(ctx context.Context) (catalogsync.PriceResult, error)
	BackfillFingerprints(ctx context.Context, limit int) (catalogsync.BackfillResult, error)
}

type Processor struct {
	sync Syncer
}

func NewProcessor(s Syncer) *Processor {
	return &Processor{sync: s}
}

func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCatalogSync, p.handleCatalog)
	mux.HandleFunc(TypePriceSync, p.handlePrices)
	mux.HandleFunc(TypeFingerprintBackfill, p.handleBackfill)
	return mux
}

func (p *Processor) handleCatalog(ctx context.Context, t *asynq.Task) error {
	res, err := p.sync.SyncCatalog(ctx)
	if err != nil {
		slog.Error("catalog sync job", "error", err.Error())
		return err
	}
	return writeResult(t, res)
}

func (p *Processor) handlePrices(ctx context.Context, t *asynq.Task) error {
	res, err := p.sync.SyncPrices(ctx)
	if err != nil {
		slog.Error("price sync job", "error", err.Error())
		return err
	}
	return writeResult(t, res)
}

func (p *Processor) handleBackfill(ctx context.Context, t *asynq.Task) error {
	pl := BackfillPayload{Limit: DefaultBackfillLimit}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &pl); err != nil {
			// битый payload не ретраим
			return errors.Wrapf(asynq.SkipRetry, "decode payload: %v", err)
		}
	}
	if pl.Limit <= 0 {
		pl.Limit = DefaultBackfillLimit
	}

	res, err := p.sync.BackfillFingerprints(ctx, pl.Limit)
	if err != nil {
		slog.Error("fingerprint backfill job", "error", err.Error())
		return err
	}
	return writeResult(t, res)
}

// writeResult stores the run summary on the task when a result writer is
// attached (tasks built outside a server have none).
func writeResult(t *asynq.Task, v any) error {
	w := t.ResultWriter()
	if w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal result")
	}
	if _, err := w.Write(b); err != nil {
		slog.Warn("write task result", "task", t.Type(), "error", err.Error())
	}
	return nil
}
