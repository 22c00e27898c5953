package reporting

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/runtime"
)

// Deliverer sends a batch of queued reports to a subscription's NotifyTo
// endpoint, in order. Implementations live in package dispatch (SOAP over
// HTTP); tests substitute an in-memory recorder.
type Deliverer interface {
	Deliver(ctx context.Context, sub *Subscription, batch []QueuedReport) error
}

// DurableSink optionally persists every report for replay/diagnostics,
// independent of (and never gating) the primary per-subscription
// delivery path. The NATS JetStream-backed implementation lives in
// package reporting's sink.go.
type DurableSink interface {
	Publish(action mdib.ReportAction, mdibVersion uint64, payload []byte)
}

// Pipeline fans a committed mdib.Report out to every matching
// subscription, immediately for episodic actions and coalesced onto a
// fixed tick for periodic ones (SPEC_FULL.md Open Question 1: the
// episodic report for a commit is never suppressed by periodic
// coalescing, even though the same commit also feeds a periodic buffer
// that may report it only in summary form at the next tick).
type Pipeline struct {
	rt         *runtime.Runtime
	manager    *Manager
	deliverer  Deliverer
	sink       DurableSink
	maxFailures int

	periodicInterval time.Duration
	mu               sync.Mutex
	periodicBuffer   map[string][]*mdib.Report // subscription id -> buffered reports since last tick
}

// NewPipeline builds a Pipeline. sink may be nil to disable the durable
// replay sink entirely.
func NewPipeline(rt *runtime.Runtime, manager *Manager, deliverer Deliverer, sink DurableSink, periodicInterval time.Duration, maxFailures int) *Pipeline {
	return &Pipeline{
		rt: rt, manager: manager, deliverer: deliverer, sink: sink,
		periodicInterval: periodicInterval, maxFailures: maxFailures,
		periodicBuffer: make(map[string][]*mdib.Report),
	}
}

// Dispatch delivers r's episodic report immediately to every matching,
// healthy subscription and buffers it for that subscription's next
// periodic tick if it also subscribes to the periodic counterpart.
func (p *Pipeline) Dispatch(ctx context.Context, r *mdib.Report) {
	if p.sink != nil {
		if payload, err := encodeReportForSink(r); err == nil {
			p.sink.Publish(r.Action, r.MdibVersion, payload)
		}
	}

	periodicAction := mdib.PeriodicCounterpart(r.Action)
	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range p.manager.All() {
		sub := sub
		if sub.Health() == Terminated {
			continue
		}
		if sub.Matches(r.Action) {
			qr := sub.enqueue(r)
			g.Go(func() error {
				p.deliverOne(gctx, sub, qr)
				return nil
			})
		}
		if periodicAction != "" && sub.Matches(periodicAction) {
			p.bufferPeriodic(sub.ID, r)
		}
	}
	_ = g.Wait()
}

func (p *Pipeline) bufferPeriodic(subID string, r *mdib.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.periodicBuffer[subID] = append(p.periodicBuffer[subID], r)
}

// RunPeriodicTicker flushes buffered periodic reports for every
// subscription on a fixed interval until ctx is canceled.
func (p *Pipeline) RunPeriodicTicker(ctx context.Context) {
	ticker := time.NewTicker(p.periodicInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushPeriodic(ctx)
		}
	}
}

func (p *Pipeline) flushPeriodic(ctx context.Context) {
	p.mu.Lock()
	pending := p.periodicBuffer
	p.periodicBuffer = make(map[string][]*mdib.Report)
	p.mu.Unlock()

	for _, sub := range p.manager.All() {
		reports, ok := pending[sub.ID]
		if !ok || len(reports) == 0 || sub.Health() == Terminated {
			continue
		}
		merged := mergePeriodic(reports)
		qr := sub.enqueue(merged)
		p.deliverOne(ctx, sub, qr)
	}
}

// mergePeriodic coalesces multiple buffered reports for the same
// periodic action into one, keeping only the latest state per touched
// handle (periodic reports summarize, they don't replay history).
func mergePeriodic(reports []*mdib.Report) *mdib.Report {
	last := reports[len(reports)-1]
	out := &mdib.Report{Action: mdib.PeriodicCounterpart(last.Action), MdibVersion: last.MdibVersion}
	seen := make(map[string]bool)
	for i := len(reports) - 1; i >= 0; i-- {
		for _, e := range reports[i].Updated {
			h := string(e.Descriptor.Handle)
			if seen[h] {
				continue
			}
			seen[h] = true
			out.Updated = append(out.Updated, e)
		}
	}
	return out
}

// deliverOne drains the subscription's entire pending backlog (at least
// qr, possibly more if earlier attempts failed or another report was
// enqueued concurrently) and attempts delivery as one ordered batch. On
// success the backlog is gone — drain already emptied it. On failure the
// batch is pushed back onto the queue so it's retried instead of lost,
// which is what actually grows the backlog the overflow check watches.
func (p *Pipeline) deliverOne(ctx context.Context, sub *Subscription, qr QueuedReport) {
	batch := sub.drain()
	if len(batch) == 0 {
		batch = []QueuedReport{qr}
	}
	if err := p.deliverer.Deliver(ctx, sub, batch); err != nil {
		sub.requeue(batch)
		health := sub.recordFailure(p.maxFailures)
		p.rt.Log.Warn("report delivery failed", errField(err))
		if health == Terminated {
			p.rt.Log.Info("subscription terminated after repeated delivery failure")
		}
		return
	}
	sub.recordSuccess()
}
