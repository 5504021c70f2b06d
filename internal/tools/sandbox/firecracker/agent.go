//go:build linux

package firecracker

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/kubiyabot/skill-engine/internal/tools/sandbox"
)

// agentPort is the vsock port the guest agent listens on.
const agentPort = 52

// maxFrame bounds a single response frame; anything larger means the
// guest is misbehaving and the connection is abandoned.
const maxFrame = 10 << 20

// guestConn talks to one VM's guest agent over the host-side unix socket
// Firecracker exposes for its vsock device. Requests are strictly
// serialised: the agent handles one command at a time and the pool never
// lends a VM to two borrowers, so there is nothing to correlate.
type guestConn struct {
	vsockPath string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

// guestRequest is one framed command to the agent.
type guestRequest struct {
	Op       string            `json:"op"` // "execute" | "sync" | "reset" | "ping"
	Code     string            `json:"code,omitempty"`
	Language string            `json:"language,omitempty"`
	Stdin    string            `json:"stdin,omitempty"`
	Files    map[string]string `json:"files,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Timeout  int               `json:"timeout,omitempty"`
}

// guestResponse is the agent's framed reply.
type guestResponse struct {
	OK         bool   `json:"ok"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	ExitCode   int    `json:"exit_code"`
	Error      string `json:"error,omitempty"`
	Timeout    bool   `json:"timeout,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

func newGuestConn(vsockPath string) *guestConn {
	return &guestConn{vsockPath: vsockPath}
}

// connect dials the vsock unix socket and performs Firecracker's
// host-initiated handshake: "CONNECT <port>\n", answered by "OK <n>\n".
// Retries cover the window where the guest agent is still booting.
func (g *guestConn) connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		return nil
	}
	if g.closed {
		return fmt.Errorf("guest connection closed")
	}

	var lastErr error
	for attempt := 0; attempt < 20; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, reader, err := g.dial(ctx)
		if err == nil {
			g.conn = conn
			g.reader = reader
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return fmt.Errorf("guest agent never answered: %w", lastErr)
}

func (g *guestConn) dial(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", g.vsockPath)
	if err != nil {
		return nil, nil, err
	}

	if _, err := fmt.Fprintf(conn, "CONNECT %d\n", agentPort); err != nil {
		conn.Close()
		return nil, nil, err
	}
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("vsock handshake: %w", err)
	}
	if !strings.HasPrefix(line, "OK ") {
		conn.Close()
		return nil, nil, fmt.Errorf("vsock handshake refused: %q", strings.TrimSpace(line))
	}
	return conn, reader, nil
}

// roundTrip frames req, sends it, and reads the single framed response.
// Any transport error poisons the connection; the caller marks the VM
// broken and the pool recycles it.
func (g *guestConn) roundTrip(ctx context.Context, req *guestRequest) (*guestResponse, error) {
	if err := g.connect(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil, fmt.Errorf("guest connection closed")
	}

	if deadline, ok := ctx.Deadline(); ok {
		g.conn.SetDeadline(deadline)
	} else {
		g.conn.SetDeadline(time.Time{})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	if _, err := g.conn.Write(frame); err != nil {
		g.drop()
		return nil, fmt.Errorf("write to guest: %w", err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(g.reader, lenBuf[:]); err != nil {
		g.drop()
		return nil, fmt.Errorf("read from guest: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrame {
		g.drop()
		return nil, fmt.Errorf("guest frame too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(g.reader, body); err != nil {
		g.drop()
		return nil, fmt.Errorf("read from guest: %w", err)
	}

	var resp guestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		g.drop()
		return nil, fmt.Errorf("decode guest response: %w", err)
	}
	return &resp, nil
}

// execute runs the synced entrypoint inside the guest.
func (g *guestConn) execute(ctx context.Context, params *sandbox.ExecuteParams) (*guestResponse, error) {
	resp, err := g.roundTrip(ctx, &guestRequest{
		Op:       "execute",
		Code:     params.Code,
		Language: params.Language,
		Stdin:    params.Stdin,
		Env:      params.Env,
		Timeout:  params.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK && resp.Error != "" && resp.ExitCode == 0 {
		return nil, fmt.Errorf("guest agent: %s", resp.Error)
	}
	return resp, nil
}

// syncFiles writes files into the guest workspace, then resets it first
// so a reused VM starts each invocation from an empty directory.
func (g *guestConn) syncFiles(ctx context.Context, files map[string]string) error {
	if _, err := g.roundTrip(ctx, &guestRequest{Op: "reset"}); err != nil {
		return err
	}
	resp, err := g.roundTrip(ctx, &guestRequest{Op: "sync", Files: files})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("guest sync failed: %s", resp.Error)
	}
	return nil
}

// ping verifies the agent answers.
func (g *guestConn) ping(ctx context.Context) error {
	resp, err := g.roundTrip(ctx, &guestRequest{Op: "ping"})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("guest unhealthy: %s", resp.Error)
	}
	return nil
}

// drop abandons the transport without marking the handle closed, so a
// later call may reconnect.
func (g *guestConn) drop() {
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
		g.reader = nil
	}
}

// close shuts the connection for good.
func (g *guestConn) close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		g.reader = nil
		return err
	}
	return nil
}
