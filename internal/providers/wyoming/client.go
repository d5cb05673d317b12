package wyoming

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Conn is one event stream to a Wyoming server.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	stop func() bool
}

// ParseAddr accepts tcp://host:port, http://host:port or host:port.
func ParseAddr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("wyoming: empty address")
	}
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("wyoming: parse address: %w", err)
		}
		addr = u.Host
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("wyoming: address %q: %w", addr, err)
	}
	return addr, nil
}

// Dial connects to addr. The connection honours ctx: its deadline becomes
// the I/O deadline and cancellation unblocks pending reads.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	hostport, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("wyoming: dial %s: %w", hostport, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(deadline)
	}

	c := &Conn{conn: nc, r: bufio.NewReaderSize(nc, 64<<10)}
	c.stop = context.AfterFunc(ctx, func() {
		_ = nc.SetDeadline(time.Now())
	})
	return c, nil
}

func (c *Conn) Write(ev Event) error {
	return WriteEvent(c.conn, ev)
}

func (c *Conn) Read() (Event, error) {
	return ReadEvent(c.r)
}

func (c *Conn) Close() error {
	c.stop()
	return c.conn.Close()
}

// Probe performs a describe/info round trip.
func Probe(ctx context.Context, addr string, timeout time.Duration) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := Dial(ctx, addr)
	if err != nil {
		return Info{}, err
	}
	defer c.Close()

	if err := c.Write(Describe{}); err != nil {
		return Info{}, err
	}
	for {
		ev, err := c.Read()
		if err != nil {
			return Info{}, fmt.Errorf("wyoming: await info: %w", err)
		}
		if info, ok := ev.(Info); ok {
			return info, nil
		}
	}
}
