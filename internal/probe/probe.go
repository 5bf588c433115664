package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jaxxstorm/atlastodo/internal/model"
	"go.uber.org/zap"
)

const DefaultTimeout = 5 * time.Second

type Prober struct {
	logger *zap.Logger
	dial   func(ctx context.Context, network, address string) (net.Conn, error)
}

func New(logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := &net.Dialer{}
	return &Prober{logger: logger, dial: dialer.DialContext}
}

// Probe attempts a single TCP connection to address:port. It never returns an
// error; refusals, unreachable networks and timeouts are all encoded in the outcome.
func (p *Prober) Probe(ctx context.Context, address string, port int, timeout time.Duration) model.ProbeOutcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	target := net.JoinHostPort(address, strconv.Itoa(port))
	outcome := model.ProbeOutcome{Address: address, Port: port}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(ctx, "tcp", target)
	outcome.Duration = time.Since(start)
	if conn != nil {
		defer conn.Close()
	}

	switch {
	case err == nil:
		outcome.Success = true
		outcome.Detail = fmt.Sprintf("connected to %s", target)
	case isTimeout(err):
		outcome.TimedOut = true
		outcome.Detail = fmt.Sprintf("TIMEOUT after %dms", timeout.Milliseconds())
	default:
		outcome.Detail = fmt.Sprintf("ERROR: %s", errorMessage(err))
	}

	p.logger.Debug("tcp probe",
		zap.String("target", target),
		zap.Bool("success", outcome.Success),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorMessage drops the "dial tcp x:y:" prefix net.OpError adds; the target is
// already printed next to the outcome.
func errorMessage(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}
