package network

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

// inboxSize bounds how many engine messages can arrive between two ticks
// before transport goroutines block.
const inboxSize = 256

// Client manages a WebSocket connection to the host.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type Client struct {
	mu sync.RWMutex

	state      ClientState
	lastError  error
	networkID  esync.NetworkId
	serverName string
	tickRate   int
	settings   messages.PredictionSettings
	conn       *websocket.Conn

	latency *LatencyTracker

	inbox    chan any                   // Engine messages, in arrival order
	configCh chan messages.ConfigUpdate // size-1 buffered; latest wins
}

func NewClient(latency *LatencyTracker) *Client {
	return &Client{
		state:    StateDisconnected,
		latency:  latency,
		inbox:    make(chan any, inboxSize),
		configCh: make(chan messages.ConfigUpdate, 1),
	}
}

// Connect dials the host in a background goroutine and initiates the join handshake.
func (c *Client) Connect(address, version, playerName, token string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		log.Println("[client] connected to server")
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()

		err := c.SendMessage(messages.JoinRequest{
			Version:    version,
			PlayerName: playerName,
			Token:      token,
		})
		if err != nil {
			c.setError(fmt.Errorf("failed to send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) {
		log.Printf("[client] join accepted: networkID=%d server=%s tickRate=%d",
			msg.NetworkID, msg.ServerName, msg.TickRate)
		c.mu.Lock()
		c.networkID = msg.NetworkID
		c.serverName = msg.ServerName
		c.tickRate = msg.TickRate
		c.settings = msg.Config
		c.state = StateJoinedGame
		c.mu.Unlock()
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		log.Printf("[client] join rejected: %s", msg.Reason)
		c.setError(fmt.Errorf("join rejected: %s", msg.Reason))
	})

	router.On(func(_ *router.NetworkClient, msg messages.ConfigUpdate) {
		select { // drain stale, push latest
		case <-c.configCh:
		default:
		}
		c.configCh <- msg
	})

	router.On(func(_ *router.NetworkClient, echo messages.LatencyEcho) {
		c.latency.HandleEcho(echo)
	})

	// Engine messages must all arrive, in order.
	router.On(func(_ *router.NetworkClient, msg messages.SpawnCancelled) {
		c.inbox <- msg
	})
	router.On(func(_ *router.NetworkClient, msg messages.ProjectileSpawned) {
		c.inbox <- msg
	})
	router.On(func(_ *router.NetworkClient, msg messages.DetonationInfo) {
		c.inbox <- msg
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		log.Printf("[client] disconnected: %v", err)
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		log.Printf("[client] error: %v", err)
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) NetworkID() esync.NetworkId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.networkID
}

// ConnectionID is the id the host knows this client by.
func (c *Client) ConnectionID() netconfig.ConnectionID {
	return netconfig.ConnectionID(c.NetworkID())
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

// Settings returns the prediction settings the host sent with JoinAccepted.
func (c *Client) Settings() messages.PredictionSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

func (c *Client) SendMessage(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

// SendToHost implements systems.Outbox.
func (c *Client) SendToHost(msg any) {
	if err := c.SendMessage(msg); err != nil {
		log.Printf("[client] send %T: %v", msg, err)
	}
}

// SendTo implements systems.Outbox. A client only talks to the host.
func (c *Client) SendTo(conn netconfig.ConnectionID, msg any) {
	if conn != netconfig.HostConnection {
		log.Printf("[client] dropping %T for connection %d", msg, conn)
		return
	}
	c.SendToHost(msg)
}

// Peers implements systems.Outbox. Clients have none.
func (c *Client) Peers() []netconfig.ConnectionID {
	return nil
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

// DrainMessages returns all pending engine messages in arrival order, non-blocking.
func (c *Client) DrainMessages() []any {
	return drainChan(c.inbox)
}

// LatestConfig returns the most recent ConfigUpdate, or nil. Non-blocking.
func (c *Client) LatestConfig() *messages.ConfigUpdate {
	select {
	case msg := <-c.configCh:
		return &msg
	default:
		return nil
	}
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
