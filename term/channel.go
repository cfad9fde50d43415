package term

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/justapithecus/tether/iox"
	"github.com/justapithecus/tether/log"
	"github.com/justapithecus/tether/metrics"
	"github.com/justapithecus/tether/types"
	"github.com/justapithecus/tether/wire"
)

// Proxy auth headers. The terminal proxy checks both.
const (
	HeaderProxyToken  = "X-Proxy-Token"
	HeaderClientAgent = "X-Client-Agent"
)

// dialTimeout bounds the terminal-create call and the websocket handshake.
const dialTimeout = 45 * time.Second

// Conn is the channel surface the executor and interactive session
// consume. Satisfied by *Channel; tests supply fakes.
type Conn interface {
	// Frames yields decoded inbound frames in arrival order. The channel
	// is closed exactly once, when the socket closes; no frames are
	// delivered after.
	Frames() <-chan wire.Frame
	// Send encodes and writes one frame.
	Send(f wire.Frame) error
	// Close tears the socket down. Safe to call more than once.
	Close() error
	// Err reports the socket failure that ended the channel, if any.
	// Valid after Frames is closed.
	Err() error
}

// ChannelConfig holds Open inputs beyond the runtime itself.
type ChannelConfig struct {
	// ClientAgent identifies this client to the proxy.
	ClientAgent string
	// Logger is the session logger (required).
	Logger *log.Logger
	// Collector records channel counters. Nil disables metrics.
	Collector *metrics.Collector
}

// Channel is one open terminal connection. Single consumer; events are
// processed strictly in arrival order.
type Channel struct {
	conn      *websocket.Conn
	frames    chan wire.Frame
	done      chan struct{}
	logger    *log.Logger
	collector *metrics.Collector

	sendMu sync.Mutex

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// terminalCreateResponse is the proxy's create-terminal payload.
type terminalCreateResponse struct {
	Name string `json:"name"`
}

// Open establishes a terminal channel to an assigned runtime.
//
// Two-step handshake: a POST to the runtime proxy creates a named
// terminal resource; a websocket is then dialed to that name with the
// same auth headers and an Origin matching the proxy. A failed create
// is fatal and the dial is never attempted.
func Open(ctx context.Context, rt *types.AssignedRuntime, cfg ChannelConfig) (*Channel, error) {
	name, err := createTerminal(ctx, rt, cfg)
	if err != nil {
		return nil, err
	}

	wsURL, origin, err := terminalSocketURL(rt.Proxy.URL, name)
	if err != nil {
		return nil, &TransportError{Op: "dial", Msg: "invalid proxy URL", Err: err}
	}

	header := http.Header{}
	header.Set(HeaderProxyToken, rt.Proxy.Token)
	header.Set(HeaderClientAgent, cfg.ClientAgent)
	header.Set("Origin", origin)

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: dialTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		defer iox.DiscardClose(resp.Body)
	}
	if err != nil {
		return nil, &TransportError{Op: "dial", Msg: fmt.Sprintf("websocket dial %s failed", wsURL), Err: err}
	}

	ch := &Channel{
		conn:      conn,
		frames:    make(chan wire.Frame),
		done:      make(chan struct{}),
		logger:    cfg.Logger,
		collector: cfg.Collector,
	}
	go ch.readLoop()

	cfg.Logger.Debug("terminal channel open", map[string]any{"terminal": name})
	return ch, nil
}

// createTerminal performs handshake step one: create the named terminal
// resource on the runtime's proxy.
func createTerminal(ctx context.Context, rt *types.AssignedRuntime, cfg ChannelConfig) (string, error) {
	createURL := strings.TrimSuffix(rt.Proxy.URL, "/") + "/api/terminals"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, createURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", &TransportError{Op: "create terminal", Msg: "build request", Err: err}
	}
	req.Header.Set(HeaderProxyToken, rt.Proxy.Token)
	req.Header.Set(HeaderClientAgent, cfg.ClientAgent)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: dialTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "create terminal", Msg: "request failed", Err: err}
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &TransportError{
			Op:  "create terminal",
			Msg: fmt.Sprintf("proxy returned %s: %s", resp.Status, bytes.TrimSpace(snippet)),
		}
	}

	var created terminalCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &TransportError{Op: "create terminal", Msg: "decode response", Err: err}
	}
	if created.Name == "" {
		return "", &TransportError{Op: "create terminal", Msg: "proxy response missing terminal name"}
	}
	return created.Name, nil
}

// terminalSocketURL derives the websocket URL and Origin for a named
// terminal. https proxies upgrade to wss, http to ws.
func terminalSocketURL(proxyURL, name string) (wsURL, origin string, err error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return "", "", err
	}

	origin = u.Scheme + "://" + u.Host

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", "", fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/terminals/websocket/" + name
	u.RawQuery = "authuser=0"
	return u.String(), origin, nil
}

// readLoop pumps inbound socket messages through the frame codec into
// the frames channel. Malformed frames are skipped with a warning;
// unknown tags are ignored. The loop owns channel shutdown: frames is
// closed exactly once, on socket close or error.
func (c *Channel) readLoop() {
	defer close(c.frames)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				c.setErr(&TransportError{Op: "read", Msg: "socket read failed", Err: err})
			}
			return
		}

		frame, err := wire.Decode(payload)
		if err != nil {
			if wire.IsUnknownTag(err) {
				c.collector.IncUnknownTags()
				c.logger.Debug("ignoring unknown frame tag", map[string]any{"error": err.Error()})
				continue
			}
			c.collector.IncDecodeErrors()
			c.logger.Warn("skipping malformed frame", map[string]any{"error": err.Error()})
			continue
		}

		c.collector.IncFramesReceived()
		// A consumer that gave up after Close must not wedge the loop.
		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

// isExpectedClose reports whether a read error is a normal close.
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		strings.Contains(err.Error(), "use of closed network connection")
}

// Frames implements Conn.
func (c *Channel) Frames() <-chan wire.Frame {
	return c.frames
}

// Send implements Conn.
func (c *Channel) Send(f wire.Frame) error {
	payload, err := wire.Encode(f)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &TransportError{Op: "send", Msg: fmt.Sprintf("write %s frame", f.Tag()), Err: err}
	}
	c.collector.IncFramesSent()
	return nil
}

// Close implements Conn. The read loop observes the closed socket and
// shuts the frames channel, so cancellation flows through the same
// close path as normal termination.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.sendMu.Lock()
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.sendMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Err implements Conn.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Channel) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
