package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kstaniek/dccl-acomms/internal/crypto"
	"github.com/kstaniek/dccl-acomms/internal/dccl/engine"
	"github.com/kstaniek/dccl-acomms/internal/metrics"
	"github.com/kstaniek/dccl-acomms/internal/modem"
	"github.com/kstaniek/dccl-acomms/internal/monitor"
	"github.com/kstaniek/dccl-acomms/internal/queue"
	"github.com/kstaniek/dccl-acomms/internal/queue/manager"
)

// Helper implementations moved to dedicated files: version.go, config.go,
// logger.go, monitor_init.go, backend.go, metrics_logger.go, mdns.go,
// schema.go.

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("dccl-gateway %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	mh := initMonitor(cfg, l)

	eng := engine.New(gatewayHeaderConfig(), engine.MaxPacketBytes)
	if err := eng.RegisterRecord(ctdSchema()); err != nil {
		l.Error("register_record_error", "record", "CTDReading", "error", err)
		return
	}
	if err := eng.RegisterRecord(statusSchema()); err != nil {
		l.Error("register_record_error", "record", "VehicleStatus", "error", err)
		return
	}

	var xform crypto.Transform = crypto.NoopTransform{}
	if cfg.passphrase != "" {
		ct, err := crypto.NewChaCha20Poly1305Transform(cfg.passphrase)
		if err != nil {
			l.Error("crypto_init_error", "error", err)
			return
		}
		xform = ct
		l.Info("crypto_enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	var mgr *manager.Manager
	hooks := monitor.WrapHooks(mh, manager.Hooks{
		OnReceive: func(key queue.Key, recordBytes []byte, destination uint32) {
			id, values, err := eng.Decode(recordBytes)
			if err != nil {
				metrics.IncError(metrics.ErrDecode)
				l.Warn("decode_error", "error", err)
				return
			}
			metrics.IncDecode()
			l.Debug("record_received", "record_id", id, "destination", destination, "fields", len(values))
		},
	}, nil)
	mgr = manager.New(cfg.selfID, gatewayHeaderConfig(), hooks)

	if err := mgr.AddQueue(queue.Key{Type: queue.KeyDCCL, ID: 10}, queue.Config{
		PriorityBase:       4,
		PriorityGrowthRate: 1,
		TTL:                10 * time.Minute,
		MaxQueue:           64,
		AckRequiredDefault: false,
	}); err != nil {
		l.Error("add_queue_error", "queue", "CTDReading", "error", err)
		return
	}
	if err := mgr.AddQueue(queue.Key{Type: queue.KeyDCCL, ID: 11}, queue.Config{
		PriorityBase:       8,
		PriorityGrowthRate: 1,
		TTL:                2 * time.Minute,
		MaxQueue:           32,
		AckRequiredDefault: true,
	}); err != nil {
		l.Error("add_queue_error", "queue", "VehicleStatus", "error", err)
		return
	}

	sched, err := manager.NewScheduler(mgr, cfg.tickInterval)
	if err != nil {
		l.Error("scheduler_init_error", "error", err)
		return
	}
	sched.Start()
	defer func() {
		shCtx, shCancel := context.WithTimeout(context.Background(), time.Second)
		defer shCancel()
		_ = sched.Stop(shCtx)
	}()

	link, cleanup, berr := initModem(ctx, cfg, l)
	if berr != nil {
		l.Error("modem_init_error", "error", berr)
		return
	}
	defer cleanup()

	wg.Add(1)
	go runModemLoop(ctx, &wg, link, mgr, mh, xform, l)

	monSrv := monitor.NewServer(cfg.monitorAddr, mh).WithMaxClients(cfg.monitorMaxClients)
	go func() {
		if err := monSrv.Serve(ctx); err != nil {
			l.Error("monitor_server_error", "error", err)
			cancel()
		}
	}()

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-monSrv.Ready():
		case <-ctx.Done():
			return
		}
		addr := monSrv.Addr()
		var portNum int
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		if portNum == 0 {
			if lastColon := strings.LastIndex(addr, ":"); lastColon >= 0 {
				if pn, perr := strconv.Atoi(addr[lastColon+1:]); perr == nil {
					portNum = pn
				}
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-monSrv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = monSrv.Shutdown(shCtx)
	wg.Wait()
}

// runModemLoop bridges the modem Link's request/ack/frame channels to the
// queue manager: an incoming Request triggers HandleModemDataRequest and
// the resulting packet goes out over the link and, once sent, is published
// to the monitor as an EventTx (WrapHooks has no "on send" callback, since a
// packet isn't attributable to one queue until after the contest runs).
func runModemLoop(ctx context.Context, wg *sync.WaitGroup, link modem.Link, mgr *manager.Manager, mh *monitor.Hub, xform crypto.Transform, l *slog.Logger) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-link.Requests():
			packet, err := mgr.HandleModemDataRequest(manager.Request{Frame: req.Frame, MaxBytes: req.MaxBytes})
			if err != nil {
				l.Warn("data_request_error", "error", err)
				continue
			}
			if len(packet) == 0 {
				continue
			}
			out, err := xform.Encrypt(packet)
			if err != nil {
				l.Error("encrypt_error", "error", err)
				continue
			}
			if err := link.Send(out); err != nil {
				l.Warn("modem_send_error", "error", err)
				continue
			}
			mh.Broadcast(monitor.Event{
				Kind:  monitor.EventTx,
				At:    time.Now(),
				Frame: req.Frame,
				Bytes: len(packet),
			})
		case ack := <-link.Acks():
			if err := mgr.HandleModemAck(manager.Ack{Frame: ack.Frame, Src: ack.Src}); err != nil {
				l.Debug("ack_error", "error", err)
			}
		case fr := <-link.Frames():
			packet, err := xform.Decrypt(fr.Data)
			if err != nil {
				metrics.IncError(metrics.ErrDecode)
				l.Warn("decrypt_error", "error", err)
				continue
			}
			if err := mgr.HandleModemReceive(packet); err != nil {
				metrics.IncMalformed()
				l.Warn("modem_receive_error", "error", err)
			}
		}
	}
}
