package routeros

import (
	"bufio"
	"context"
	"crypto/md5" //nolint:gosec // G501: the pre-6.43 API login is defined over MD5
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the transport session lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateClosing
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Conn owns one TCP (optionally TLS-wrapped) connection to one NAS device.
// It performs the login handshake, sends encoded commands, and correlates
// synchronous replies. The wire protocol multiplexes replies by arrival
// order, not request id, so sends are serialized: one in-flight command at
// a time. A Conn is never shared across concurrent client calls.
type Conn struct {
	cfg    DeviceConfig
	logger *zap.Logger

	sendMu sync.Mutex // one in-flight command at a time
	conn   net.Conn
	r      *bufio.Reader

	stateMu sync.Mutex
	state   State
}

// dialer is the function used to open TCP connections. Overridden in tests.
type dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// Dial opens a session to the device and authenticates it. The config's
// Version selects the connect strategy: VersionV6 goes straight to the
// binary API login; VersionV7 first runs a REST readiness probe (falling
// back silently when the REST endpoint is unavailable) and then performs
// the same binary login. Callers never see the difference.
func Dial(ctx context.Context, cfg DeviceConfig, logger *zap.Logger) (*Conn, error) {
	return dialWith(ctx, cfg, logger, nil)
}

func dialWith(ctx context.Context, cfg DeviceConfig, logger *zap.Logger, dial dialer) (*Conn, error) {
	cfg = cfg.normalized()
	c := &Conn{cfg: cfg, logger: logger, state: StateDisconnected}

	if cfg.Version == VersionV7 {
		// Readiness probe only: the command channel is still the binary API.
		if err := restProbe(ctx, cfg); err != nil {
			logger.Debug("REST readiness probe unavailable, using binary login only",
				zap.String("host", cfg.Host),
				zap.Error(err),
			)
		}
	}

	if err := c.connect(ctx, dial); err != nil {
		return nil, err
	}
	return c, nil
}

// connect opens the socket and runs the binary login handshake.
func (c *Conn) connect(ctx context.Context, dial dialer) error {
	c.setState(StateConnecting)

	if dial == nil {
		d := &net.Dialer{Timeout: c.cfg.Timeout}
		dial = d.DialContext
	}

	addr := c.cfg.addr()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		c.setState(StateFaulted)
		return &ConnectionError{Addr: addr, Err: err}
	}

	if c.cfg.UseTLS {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         c.cfg.Host,
			InsecureSkipVerify: true, //nolint:gosec // G402: hotspot routers ship self-signed certs; pinning is a future enhancement
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			c.setState(StateFaulted)
			return &ConnectionError{Addr: addr, Err: fmt.Errorf("tls handshake: %w", err)}
		}
		conn = tlsConn
	}

	c.conn = conn
	c.r = bufio.NewReader(conn)

	c.setState(StateAuthenticating)
	if err := c.login(ctx); err != nil {
		conn.Close()
		c.setState(StateFaulted)
		return err
	}

	c.setState(StateReady)
	c.logger.Debug("device session ready", zap.String("addr", addr))
	return nil
}

// login performs the binary API authentication exchange. Post-6.43 firmware
// accepts the credentials inline; older firmware answers with an MD5
// challenge in =ret= that must be solved in a second /login round.
func (c *Conn) login(ctx context.Context) error {
	done, err := c.exchange(ctx, command("/login", map[string]string{
		"name":     c.cfg.Username,
		"password": c.cfg.Password,
	}, nil))
	if err != nil {
		return c.asLoginError(err)
	}

	challenge, ok := done.attrs["ret"]
	if !ok {
		return nil // plain login accepted
	}

	// Pre-6.43 challenge/response: md5(0x00 ++ password ++ challenge bytes).
	chalBytes, err := hex.DecodeString(challenge)
	if err != nil {
		return &ProtocolError{Op: "login", Err: fmt.Errorf("bad challenge %q: %w", challenge, err)}
	}
	h := md5.New() //nolint:gosec
	h.Write([]byte{0})
	h.Write([]byte(c.cfg.Password))
	h.Write(chalBytes)
	response := "00" + hex.EncodeToString(h.Sum(nil))

	if _, err := c.exchange(ctx, command("/login", map[string]string{
		"name":     c.cfg.Username,
		"response": response,
	}, nil)); err != nil {
		return c.asLoginError(err)
	}
	return nil
}

// asLoginError turns a trap during login into a ConnectionError: rejected
// credentials are a connectivity outcome, not a domain error.
func (c *Conn) asLoginError(err error) error {
	if trap, ok := err.(*TrapError); ok {
		return &ConnectionError{Addr: c.cfg.addr(), Err: fmt.Errorf("login rejected: %s", trap.Message)}
	}
	return err
}

// State returns the current session state.
func (c *Conn) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Send issues one command sentence and returns the data records collected up
// to the terminating !done. Valid only in the Ready state. A !trap reply is
// returned as *TrapError; any I/O or decode failure faults the session.
// Cancelling ctx closes the socket promptly.
func (c *Conn) Send(ctx context.Context, words []string) ([]*record, error) {
	if st := c.State(); st != StateReady {
		return nil, fmt.Errorf("send in state %s: session not ready", st)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	recs, err := c.roundTrip(ctx, words)
	if err != nil {
		if _, isTrap := err.(*TrapError); !isTrap {
			c.fault()
		}
		return nil, err
	}
	return recs, nil
}

// exchange is Send without the Ready-state gate, used by the login handshake.
// Returns the terminating !done record.
func (c *Conn) exchange(ctx context.Context, words []string) (*record, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	_, done, err := c.roundTripDone(ctx, words)
	return done, err
}

func (c *Conn) roundTrip(ctx context.Context, words []string) ([]*record, error) {
	recs, _, err := c.roundTripDone(ctx, words)
	return recs, err
}

// roundTripDone writes one sentence and reads reply sentences until !done.
func (c *Conn) roundTripDone(ctx context.Context, words []string) ([]*record, *record, error) {
	stop := c.watchCancel(ctx)
	defer stop()

	deadline := time.Now().Add(c.cfg.Timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := writeSentence(c.conn, words); err != nil {
		return nil, nil, c.wrapIOError(ctx, err)
	}

	var rows []*record
	var trap *TrapError
	for {
		rec, err := readSentence(c.r)
		if err != nil {
			return nil, nil, c.wrapIOError(ctx, err)
		}
		switch rec.marker {
		case wordData:
			rows = append(rows, rec)
		case wordTrap:
			// Remember the first trap; the device still terminates with !done.
			if trap == nil {
				trap = &TrapError{Command: words[0], Message: rec.attrs["message"]}
			}
		case wordFatal:
			return nil, nil, &ProtocolError{Op: words[0], Err: fmt.Errorf("fatal reply: %s", rec.attrs["message"])}
		case wordDone:
			if trap != nil {
				return nil, nil, trap
			}
			return rows, rec, nil
		}
	}
}

// watchCancel closes the socket when ctx is cancelled so blocked reads and
// writes return promptly and the device does not hold a half-open session.
func (c *Conn) watchCancel(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.fault()
			c.conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// wrapIOError maps low-level failures onto the error taxonomy: context
// cancellation and timeouts become ConnectionErrors, codec failures stay
// ProtocolErrors.
func (c *Conn) wrapIOError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ConnectionError{Addr: c.cfg.addr(), Err: ctxErr}
	}
	if pe, ok := err.(*ProtocolError); ok {
		return pe
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &ConnectionError{Addr: c.cfg.addr(), Err: err}
	}
	return &ConnectionError{Addr: c.cfg.addr(), Err: err}
}

func (c *Conn) fault() {
	c.stateMu.Lock()
	if c.state != StateClosing && c.state != StateDisconnected {
		c.state = StateFaulted
	}
	c.stateMu.Unlock()
}

// Close releases the socket. Idempotent and safe from any state.
func (c *Conn) Close() error {
	c.stateMu.Lock()
	if c.state == StateDisconnected {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.stateMu.Unlock()

	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.setState(StateDisconnected)
	return err
}
