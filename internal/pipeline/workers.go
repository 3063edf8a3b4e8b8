package pipeline

import (
	"context"
	"sync"

	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/observability"
)

// enrichJob is one unit of deferred post-insert work. The worker pool owns
// the event exclusively from submission until completion; each job performs
// at most one follow-up partial update of the persisted record and never
// re-triggers rule evaluation.
type enrichJob struct {
	ev   *domain.Event
	mask domain.EnrichMask
}

// submit queues a job for background processing, fire-and-forget. When the
// queue is full the job is dropped and counted; there is no retry and no
// dead-letter queue.
func (p *Pipeline) submit(job enrichJob) bool {
	select {
	case p.jobs <- job:
		observability.EnrichQueued.Inc()
		observability.EnrichQueueDepth.Set(float64(len(p.jobs)))
		return true
	default:
		observability.EnrichDropped.Inc()
		p.log.Warn("enrichment queue full, job dropped",
			"account", job.ev.AccountID, "asset", job.ev.AssetID)
		return false
	}
}

// RunWorkers runs the enrichment worker pool until ctx is canceled.
func (p *Pipeline) RunWorkers(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case job := <-p.jobs:
			observability.EnrichQueueDepth.Set(float64(len(p.jobs)))
			p.processJob(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

// processJob performs the deferred cell-tower and address lookups and issues
// the single follow-up event update. A failed job is logged and discarded.
func (p *Pipeline) processJob(ctx context.Context, job enrichJob) {
	ev := job.ev
	var fields []string

	if job.mask&domain.EnrichCellTower != 0 && ev.HasCellIdentifiers() {
		pt, err := p.cells.Locate(ctx, ev.MCC, ev.MNC, ev.CellID, ev.LAC)
		if err != nil {
			p.log.Warn("cell tower lookup failed",
				"account", ev.AccountID, "asset", ev.AssetID, "error", err)
		} else if pt != nil && pt.Valid() {
			ev.CellLatitude = pt.Latitude
			ev.CellLongitude = pt.Longitude
			fields = append(fields, domain.EventFieldCellLatitude, domain.EventFieldCellLongitude)
		}
	}

	if job.mask&domain.EnrichAddress != 0 {
		res := p.resolveAddress(ctx, ev, false, false)
		if res.Outcome == AddressResolved {
			fields = append(fields, res.Fields...)
		}
	}

	observability.EnrichCompleted.Inc()
	if len(fields) == 0 {
		observability.EnrichNoResult.Inc()
		return
	}

	if err := p.store.UpdateEventFields(ctx, ev, fields); err != nil {
		observability.EnrichFailed.Inc()
		p.log.Error("event enrichment update failed",
			"account", ev.AccountID, "asset", ev.AssetID, "error", err)
	}
}
