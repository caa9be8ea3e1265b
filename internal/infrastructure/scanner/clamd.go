package scanner

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
)

const clamdChunkSize = 64 * 1024

// Clamd streams files to a clamd daemon with the INSTREAM command, so the
// daemon never needs access to the upload directory.
type Clamd struct {
	network string
	address string
	dialer  net.Dialer
}

func NewClamd(network string, address string) (*Clamd, error) {
	network = strings.TrimSpace(network)
	if network == "" {
		network = "tcp"
	}
	if network != "tcp" && network != "unix" {
		return nil, fmt.Errorf("clamd network must be tcp or unix, got %q", network)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("clamd address is required")
	}
	return &Clamd{network: network, address: address}, nil
}

func (c *Clamd) Name() string {
	return "clamd"
}

// Ping checks the daemon is reachable.
func (c *Clamd) Ping(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, "zPING\x00", nil)
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return fmt.Errorf("%w: unexpected ping reply %q", document.ErrScannerUnavailable, reply)
	}
	return nil
}

func (c *Clamd) Scan(ctx context.Context, filePath string, _ string) (document.ScanResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return document.ScanResult{}, errs.Wrap(err, "open file for clamd")
	}
	defer f.Close()

	reply, err := c.roundTrip(ctx, "zINSTREAM\x00", f)
	if err != nil {
		return document.ScanResult{}, err
	}
	return parseClamdReply(reply)
}

func (c *Clamd) roundTrip(ctx context.Context, command string, body io.Reader) (string, error) {
	conn, err := c.dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return "", fmt.Errorf("%w: dial clamd %s: %v", document.ErrScannerUnavailable, c.address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	if _, err := io.WriteString(conn, command); err != nil {
		return "", c.ioError(ctx, "write command", err)
	}
	if body != nil {
		if err := writeChunks(conn, body); err != nil {
			return "", c.ioError(ctx, "stream file", err)
		}
	}

	reply, err := bufio.NewReader(conn).ReadString(0)
	if err != nil && !(errors.Is(err, io.EOF) && reply != "") {
		return "", c.ioError(ctx, "read reply", err)
	}
	return strings.TrimSpace(strings.TrimRight(reply, "\x00")), nil
}

func (c *Clamd) ioError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: clamd %s: %v", document.ErrScanTimeout, op, ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: clamd %s: %v", document.ErrScanTimeout, op, err)
	}
	return fmt.Errorf("%w: clamd %s: %v", document.ErrScannerUnavailable, op, err)
}

func writeChunks(w io.Writer, r io.Reader) error {
	buf := make([]byte, clamdChunkSize)
	var size [4]byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(size[:], uint32(n))
			if _, werr := w.Write(size[:]); werr != nil {
				return werr
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errs.Wrap(err, "read file chunk")
		}
	}
	binary.BigEndian.PutUint32(size[:], 0)
	_, err := w.Write(size[:])
	return err
}

// parseClamdReply understands "stream: OK", "stream: <name> FOUND" and
// "<message> ERROR".
func parseClamdReply(reply string) (document.ScanResult, error) {
	body := reply
	if idx := strings.Index(reply, ": "); idx >= 0 {
		body = reply[idx+2:]
	}
	switch {
	case body == "OK":
		return document.ScanResult{Clean: true}, nil
	case strings.HasSuffix(body, " FOUND"):
		return document.ScanResult{Clean: false, ThreatName: strings.TrimSpace(strings.TrimSuffix(body, " FOUND"))}, nil
	case strings.HasSuffix(body, " ERROR"):
		return document.ScanResult{}, fmt.Errorf("clamd error: %s", strings.TrimSpace(strings.TrimSuffix(body, " ERROR")))
	default:
		return document.ScanResult{}, fmt.Errorf("%w: unexpected clamd reply %q", ErrNoVerdict, reply)
	}
}
