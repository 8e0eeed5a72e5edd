package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	selfID      uint32
	modemDev    string
	baud        int
	modemReadTO time.Duration

	logFormat string
	logLevel  string

	metricsAddr     string
	logMetricsEvery time.Duration

	monitorAddr       string
	monitorBuffer     int
	monitorPolicy     string
	monitorMaxClients int
	handshakeTO       time.Duration

	tickInterval time.Duration

	passphrase string

	mdnsEnable bool
	mdnsName   string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	selfID := flag.Uint("self-id", 1, "This node's modem address")
	modemDev := flag.String("modem", "/dev/ttyUSB0", "Modem serial device path")
	baud := flag.Int("baud", 19200, "Modem serial baud rate")
	modemReadTO := flag.Duration("modem-read-timeout", 50*time.Millisecond, "Modem serial read timeout")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	monitorAddr := flag.String("monitor-listen", ":21000", "Monitor TCP listen address")
	monitorBuffer := flag.Int("monitor-buffer", 256, "Per-client monitor event buffer")
	monitorPolicy := flag.String("monitor-policy", "drop", "Monitor backpressure policy: drop|kick")
	monitorMaxClients := flag.Int("monitor-max-clients", 0, "Maximum simultaneous monitor clients (0 = unlimited)")
	handshakeTO := flag.Duration("handshake-timeout", 3*time.Second, "Monitor client handshake timeout (validated only; the monitor server uses its built-in 3s)")
	tickInterval := flag.Duration("tick-interval", 250*time.Millisecond, "Queue manager DoWork tick interval")
	passphrase := flag.String("crypto-passphrase", "", "Optional passphrase enabling packet encryption; empty disables")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default dccl-gateway-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.selfID = uint32(*selfID)
	cfg.modemDev = *modemDev
	cfg.baud = *baud
	cfg.modemReadTO = *modemReadTO
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.monitorAddr = *monitorAddr
	cfg.monitorBuffer = *monitorBuffer
	cfg.monitorPolicy = *monitorPolicy
	cfg.monitorMaxClients = *monitorMaxClients
	cfg.handshakeTO = *handshakeTO
	cfg.tickInterval = *tickInterval
	cfg.passphrase = *passphrase
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners, only checks ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.monitorPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid monitor-policy: %s", c.monitorPolicy)
	}
	if c.monitorBuffer <= 0 {
		return fmt.Errorf("monitor-buffer must be > 0 (got %d)", c.monitorBuffer)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.modemReadTO <= 0 {
		return fmt.Errorf("modem-read-timeout must be > 0")
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.tickInterval <= 0 {
		return fmt.Errorf("tick-interval must be > 0")
	}
	if c.monitorMaxClients < 0 {
		return fmt.Errorf("monitor-max-clients must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps DCCL_GATEWAY_* environment variables to config
// fields unless a corresponding flag was explicitly set. Numeric and
// duration parsing follows time.ParseDuration/strconv conventions. Empty
// values are ignored, except DCCL_GATEWAY_METRICS and
// DCCL_GATEWAY_CRYPTO_PASSPHRASE, where an empty value is applied.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["self-id"]; !ok {
		if v, ok := get("DCCL_GATEWAY_SELF_ID"); ok && v != "" {
			if n, err := strconv.ParseUint(v, 10, 32); err == nil {
				c.selfID = uint32(n)
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_SELF_ID: %w", err)
			}
		}
	}
	if _, ok := set["modem"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MODEM"); ok && v != "" {
			c.modemDev = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("DCCL_GATEWAY_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["modem-read-timeout"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MODEM_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.modemReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_MODEM_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("DCCL_GATEWAY_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("DCCL_GATEWAY_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("DCCL_GATEWAY_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("DCCL_GATEWAY_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["monitor-listen"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MONITOR_LISTEN"); ok && v != "" {
			c.monitorAddr = v
		}
	}
	if _, ok := set["monitor-buffer"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MONITOR_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.monitorBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_MONITOR_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["monitor-policy"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MONITOR_POLICY"); ok && v != "" {
			c.monitorPolicy = v
		}
	}
	if _, ok := set["monitor-max-clients"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MONITOR_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.monitorMaxClients = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_MONITOR_MAX_CLIENTS: %w", err)
			}
		}
	}
	if _, ok := set["handshake-timeout"]; !ok {
		if v, ok := get("DCCL_GATEWAY_HANDSHAKE_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.handshakeTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_HANDSHAKE_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["tick-interval"]; !ok {
		if v, ok := get("DCCL_GATEWAY_TICK_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.tickInterval = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid DCCL_GATEWAY_TICK_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["crypto-passphrase"]; !ok {
		if v, ok := get("DCCL_GATEWAY_CRYPTO_PASSPHRASE"); ok {
			c.passphrase = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("DCCL_GATEWAY_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
