package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kstaniek/dccl-acomms/internal/modem"
)

// openModemPort is a hook for tests.
var openModemPort = modem.OpenPort

// initModem opens the serial-backed modem link. It returns an error instead
// of exiting the process so callers can shut down gracefully.
func initModem(ctx context.Context, cfg *appConfig, l *slog.Logger) (*modem.SerialLink, func(), error) {
	port, err := openModemPort(cfg.modemDev, cfg.baud, cfg.modemReadTO)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open modem: %w", err)
	}
	l.Info("modem_open", "device", cfg.modemDev, "baud", cfg.baud)
	link := modem.NewSerialLink(ctx, port, modemTxQueueSize)
	return link, func() { _ = link.Close() }, nil
}
