package reporting_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/reporting"
	"github.com/sdcgo/sdc-core/internal/runtime"
)

type recordingDeliverer struct {
	mu    sync.Mutex
	calls []mdib.ReportAction
	fail  bool
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ *reporting.Subscription, batch []reporting.QueuedReport) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return assert.AnError
	}
	for _, qr := range batch {
		d.calls = append(d.calls, qr.Report.Action)
	}
	return nil
}

func (d *recordingDeliverer) snapshot() []mdib.ReportAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]mdib.ReportAction(nil), d.calls...)
}

func newReport(action mdib.ReportAction, handle model.Handle) *mdib.Report {
	return &mdib.Report{
		Action:      action,
		MdibVersion: 1,
		Updated:     []model.Entity{{Descriptor: model.Descriptor{Handle: handle, Kind: model.KindNumericMetric}}},
	}
}

func TestPipeline_episodicDeliveredImmediately(t *testing.T) {
	manager := reporting.NewManager()
	deliverer := &recordingDeliverer{}
	rt := runtime.New(zap.NewNop(), nil)
	pipeline := reporting.NewPipeline(rt, manager, deliverer, nil, time.Hour, 3)

	manager.Create("http://example/notify", nil, time.Minute, 10)
	pipeline.Dispatch(context.Background(), newReport(mdib.EpisodicMetricReport, "metric1"))

	assert.Equal(t, []mdib.ReportAction{mdib.EpisodicMetricReport}, deliverer.snapshot())
}

func TestPipeline_periodicCoalescesUntilTick(t *testing.T) {
	manager := reporting.NewManager()
	deliverer := &recordingDeliverer{}
	rt := runtime.New(zap.NewNop(), nil)
	pipeline := reporting.NewPipeline(rt, manager, deliverer, nil, 50*time.Millisecond, 3)

	manager.Create("http://example/notify", []mdib.ReportAction{mdib.PeriodicMetricReport}, time.Minute, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipeline.RunPeriodicTicker(ctx)

	pipeline.Dispatch(context.Background(), newReport(mdib.EpisodicMetricReport, "metric1"))
	pipeline.Dispatch(context.Background(), newReport(mdib.EpisodicMetricReport, "metric2"))

	// Not subscribed to episodic, so nothing should arrive before the tick.
	assert.Empty(t, deliverer.snapshot())

	require.Eventually(t, func() bool {
		return len(deliverer.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, mdib.PeriodicMetricReport, deliverer.snapshot()[0])
}

func TestSubscription_terminatesAfterRepeatedFailures(t *testing.T) {
	manager := reporting.NewManager()
	deliverer := &recordingDeliverer{fail: true}
	rt := runtime.New(zap.NewNop(), nil)
	pipeline := reporting.NewPipeline(rt, manager, deliverer, nil, time.Hour, 2)

	sub := manager.Create("http://example/notify", nil, time.Minute, 10)
	for i := 0; i < 3; i++ {
		pipeline.Dispatch(context.Background(), newReport(mdib.EpisodicMetricReport, "metric1"))
	}
	require.Eventually(t, func() bool {
		return sub.Health() == reporting.Terminated
	}, time.Second, 10*time.Millisecond)
}
