package modem

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/kstaniek/dccl-acomms/internal/logging"
	"github.com/kstaniek/dccl-acomms/internal/metrics"
	"github.com/tarm/serial"
)

// ErrTxOverflow is returned by Send when the async write buffer is full.
var ErrTxOverflow = errors.New("modem: tx overflow")

// Port abstracts tarm/serial for testability, grounded on the teacher's
// internal/serial.Port.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// OpenPort opens a real serial device.
func OpenPort(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// SerialLink is a Link backed by a serial Port, framing packets and events
// per codec.go. One goroutine reads and decodes; writes are funneled
// through an AsyncTx so a stalled device can't block the queue manager.
type SerialLink struct {
	port Port
	tx   *AsyncTx

	requests chan Request
	acks     chan Ack
	frames   chan Frame

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSerialLink starts the read loop and async writer over port.
func NewSerialLink(parent context.Context, port Port, txBuf int) *SerialLink {
	ctx, cancel := parent, func() {}
	ctx, cancel = context.WithCancel(ctx)

	l := &SerialLink{
		port:     port,
		requests: make(chan Request, 16),
		acks:     make(chan Ack, 16),
		frames:   make(chan Frame, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	l.tx = NewAsyncTx(ctx, txBuf, func(p []byte) error {
		_, err := port.Write(p)
		return err
	}, AsyncTxHooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrModemWrite)
			logging.L().Error("modem_write_error", "error", err)
		},
		OnAfter: func() { metrics.IncModemTx() },
		OnDrop: func() error {
			metrics.IncError(metrics.ErrModemOverflow)
			return ErrTxOverflow
		},
	})
	go l.readLoop(ctx)
	return l
}

func (l *SerialLink) readLoop(ctx context.Context) {
	defer close(l.done)
	buf := make([]byte, 4096)
	var acc bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := l.port.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			now := time.Now()
			decodeStream(&acc,
				func(data []byte) {
					metrics.IncModemRx()
					select {
					case l.frames <- Frame{Data: data, At: now}:
					default:
						metrics.IncError(metrics.ErrModemOverflow)
					}
				},
				func(req Request) {
					select {
					case l.requests <- req:
					default:
					}
				},
				func(ack Ack) {
					ack.At = now
					select {
					case l.acks <- ack:
					default:
					}
				},
			)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncError(metrics.ErrModemRead)
			logging.L().Warn("modem_read_error", "error", err)
			continue
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

// Send queues packet for asynchronous write to the device.
func (l *SerialLink) Send(packet []byte) error { return l.tx.Send(encodeData(packet)) }

func (l *SerialLink) Requests() <-chan Request { return l.requests }
func (l *SerialLink) Acks() <-chan Ack         { return l.acks }
func (l *SerialLink) Frames() <-chan Frame     { return l.frames }

// Close stops the reader and writer and closes the underlying port.
func (l *SerialLink) Close() error {
	l.cancel()
	l.tx.Close()
	<-l.done
	return l.port.Close()
}
