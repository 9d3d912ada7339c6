package nio

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/topolab/pkg/domain"
)

// Hypervisor speaks the Dynamips hypervisor line protocol over TCP.
//
// Every reply line is "<code><sep><text>" with a three digit code. Data lines use
// a space separator ("101 nio_vde0"); the block ends with "100-<text>" on success
// or "2xx-<text>" on rejection.
type Hypervisor struct {
	addr    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

var _ ControlChannel = (*Hypervisor)(nil)

// NewHypervisor creates a channel to the hypervisor listening on addr ("host:port").
// The connection is opened lazily on the first command.
func NewHypervisor(addr string) *Hypervisor {
	return &Hypervisor{addr: addr, timeout: 30 * time.Second}
}

// Send writes one command line and reads the reply block. Commands on one
// Hypervisor are serialized.
func (h *Hypervisor) Send(ctx context.Context, command string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if strings.ContainsAny(command, "\r\n") {
		return nil, fmt.Errorf("command must be a single line: %q", command)
	}

	if err := h.dial(ctx); err != nil {
		return nil, domain.ConnectionError(command, err)
	}

	deadline := time.Now().Add(h.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = h.conn.SetDeadline(deadline)

	if _, err := h.conn.Write([]byte(command + "\n")); err != nil {
		h.reset()
		return nil, domain.ConnectionError(command, err)
	}

	var (
		lines     []string
		rejection *domain.Error
	)
	for {
		raw, err := h.reader.ReadString('\n')
		if err != nil {
			h.reset()
			return nil, domain.ConnectionError(command, err)
		}
		code, text, last, err := parseReply(strings.TrimRight(raw, "\r\n"))
		if err != nil {
			h.reset()
			return nil, domain.ConnectionError(command, err)
		}
		if code >= 200 {
			if !last {
				h.reset()
				return nil, domain.ConnectionError(command, fmt.Errorf("malformed hypervisor reply %q", raw))
			}
			rejection = domain.BackendCommandError(command, code, text)
			break
		}
		lines = append(lines, text)
		if last {
			break
		}
	}
	if rejection != nil {
		return nil, rejection
	}
	return lines, nil
}

// Close drops the connection.
func (h *Hypervisor) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn, h.reader = nil, nil
	return err
}

func (h *Hypervisor) dial(ctx context.Context) error {
	if h.conn != nil {
		return nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", h.addr)
	if err != nil {
		return err
	}
	h.conn = conn
	h.reader = bufio.NewReader(conn)
	return nil
}

func (h *Hypervisor) reset() {
	if h.conn != nil {
		_ = h.conn.Close()
	}
	h.conn, h.reader = nil, nil
}

func parseReply(line string) (code int, text string, last bool, err error) {
	if len(line) < 4 {
		return 0, "", false, fmt.Errorf("malformed hypervisor reply %q", line)
	}
	code, err = strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", false, fmt.Errorf("malformed hypervisor reply code %q", line)
	}
	switch line[3] {
	case '-':
		last = true
	case ' ':
		last = false
	default:
		return 0, "", false, fmt.Errorf("malformed hypervisor reply separator %q", line)
	}
	return code, line[4:], last, nil
}
