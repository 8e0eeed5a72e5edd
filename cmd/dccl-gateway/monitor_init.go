package main

import (
	"log/slog"

	"github.com/kstaniek/dccl-acomms/internal/monitor"
)

func initMonitor(cfg *appConfig, l *slog.Logger) *monitor.Hub {
	h := monitor.NewHub()
	h.OutBufSize = cfg.monitorBuffer
	switch cfg.monitorPolicy {
	case "drop":
		h.Policy = monitor.PolicyDrop
	case "kick":
		h.Policy = monitor.PolicyKick
	default:
		l.Warn("unknown_monitor_policy", "policy", cfg.monitorPolicy, "used", "drop")
		h.Policy = monitor.PolicyDrop
	}
	policyStr := map[monitor.BackpressurePolicy]string{monitor.PolicyDrop: "drop", monitor.PolicyKick: "kick"}[h.Policy]
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	l.Info("monitor_config", "policy", policyStr, "buffer", h.OutBufSize)
	return h
}
