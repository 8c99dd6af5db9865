package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-gateway/observability"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker periodically logs gateway counters together with the
// process footprint (RSS, CPU). It is observability only: losing a tick
// has no effect on routing.
type TelemetryWorker struct {
	log      *slog.Logger
	mon      *observability.Monitoring
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, mon *observability.Monitoring, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, mon: mon, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := w.mon.Snapshot()
			rssMb, cpu := selfStats(p)
			w.log.Info("Gateway telemetry",
				"current_connections", stats.CurrentConnections,
				"connections_opened", stats.ConnectionsOpened,
				"events_routed", stats.EventsRouted,
				"frames_delivered", stats.FramesDelivered,
				"push_failures", stats.PushFailures,
				"presence_edges", stats.PresenceEdges,
				"edges_dropped", stats.EdgesDropped,
				"store_write_failures", stats.StoreWriteFailures,
				"rss_mb", rssMb,
				"cpu_percent", cpu,
			)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64) {
	var rssMb uint64
	var cpu float64
	if mem, err := p.MemoryInfo(); err == nil {
		rssMb = mem.RSS / 1024 / 1024
	}
	if percent, err := p.CPUPercent(); err == nil {
		cpu = percent
	}
	return rssMb, cpu
}
