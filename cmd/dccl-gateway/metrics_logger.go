package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/dccl-acomms/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"encode", snap.Encode,
					"decode", snap.Decode,
					"modem_rx", snap.ModemRx,
					"modem_tx", snap.ModemTx,
					"queue_push", snap.QueuePush,
					"queue_reject", snap.QueueReject,
					"queue_ack", snap.QueueAck,
					"queue_expire", snap.QueueExpire,
					"contest_winners", snap.Contest,
					"monitor_clients", snap.MonitorConns,
					"monitor_drops", snap.MonitorDrop,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
