package core

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/network"
	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/automoto/boomsync/systems"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
)

// commandBuffer bounds how many router events can queue between two ticks.
const commandBuffer = 1024

// peer is the part of a necs client the server talks to.
type peer interface {
	Id() string
	SendMessage(msg any) error
}

type Options struct {
	Name     string
	Version  string // Required client version; empty accepts any
	TickRate int
	Arena    systems.Collider
	Configs  *config.Store
	Auth     *SessionAuthorizer // nil admits everyone
	Effects  systems.EffectSink
}

// Server hosts the authoritative projectile simulation. Router callbacks run
// on necs goroutines and only enqueue commands; everything else runs on the
// game loop.
type Server struct {
	name     string
	version  string
	tickRate int

	machine   *systems.Machine
	configs   *config.Store
	latency   *network.LatencyTracker
	auth      *SessionAuthorizer
	loop      *GameLoop
	transport *transports.WsServerTransport
	commands  chan func()

	// Owned by the game loop.
	conns   map[peer]netconfig.ConnectionID
	clients map[netconfig.ConnectionID]peer
	nextID  netconfig.ConnectionID

	mu      sync.RWMutex
	players int
}

func NewServer(opts Options) *Server {
	configs := opts.Configs
	if configs == nil {
		configs = config.NewStore(config.DefaultPrediction)
	}
	effects := opts.Effects
	if effects == nil {
		effects = systems.LogEffects{Name: "host"}
	}

	s := &Server{
		name:     opts.Name,
		version:  opts.Version,
		tickRate: opts.TickRate,
		configs:  configs,
		latency:  network.NewLatencyTracker(network.DefaultSmoothing, time.Now),
		auth:     opts.Auth,
		commands: make(chan func(), commandBuffer),
		conns:    make(map[peer]netconfig.ConnectionID),
		clients:  make(map[netconfig.ConnectionID]peer),
	}

	var authz systems.Authorizer
	if opts.Auth != nil {
		authz = opts.Auth
	}
	s.machine = systems.NewMachine(systems.Options{
		Mode:       systems.HostMode,
		Local:      netconfig.HostConnection,
		Collider:   opts.Arena,
		Configs:    configs,
		Outbox:     s,
		Effects:    effects,
		Latency:    s.latency,
		Authorizer: authz,
	})
	s.loop = NewGameLoop(s, opts.TickRate)
	s.tickRate = s.loop.tickRate

	configs.OnChange(func(conn netconfig.ConnectionID, cfg config.PredictionConfig, all bool) {
		s.enqueue(func() { s.pushConfig(conn, cfg, all) })
	})
	return s
}

// Listen registers the router callbacks and serves websocket clients on
// port. It blocks until the transport fails.
func (s *Server) Listen(port uint) error {
	s.setupRouterCallbacks()
	s.transport = transports.NewWsServerTransport(port, "", nil)
	return s.transport.Start()
}

func (s *Server) Loop() *GameLoop {
	return s.loop
}

func (s *Server) Machine() *systems.Machine {
	return s.machine
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		log.Printf("[server] client connected: %s", client.Id())
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		if err != nil {
			log.Printf("[server] client %s disconnected with error: %v", client.Id(), err)
		}
		s.enqueue(func() { s.handleDisconnect(client) })
	})

	router.On(func(client *router.NetworkClient, msg messages.JoinRequest) {
		s.enqueue(func() { s.handleJoin(client, msg) })
	})
	router.On(func(client *router.NetworkClient, msg messages.LatencyProbe) {
		s.enqueue(func() { s.handleProbe(client, msg) })
	})
	router.On(func(client *router.NetworkClient, msg messages.ShotActivation) {
		s.enqueue(func() { s.dispatch(client, msg) })
	})
	router.On(func(client *router.NetworkClient, msg messages.SpawnData) {
		s.enqueue(func() { s.dispatch(client, msg) })
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		log.Printf("[server] client error: %v", err)
	})
}

func (s *Server) enqueue(cmd func()) {
	s.commands <- cmd
}

// ProcessCommands runs every queued router event. Called by the game loop
// before the simulation steps.
func (s *Server) ProcessCommands() {
	for {
		select {
		case cmd := <-s.commands:
			cmd()
		default:
			return
		}
	}
}

// Tick applies queued events and advances the simulation by dt.
func (s *Server) Tick(dt time.Duration) {
	s.ProcessCommands()
	s.machine.Update(dt)
}

// Fire queues a shot fired by the host itself.
func (s *Server) Fire(req systems.FireRequest) {
	s.enqueue(func() {
		if _, err := s.machine.Fire(req); err != nil {
			log.Printf("[server] host fire: %v", err)
		}
	})
}

func (s *Server) handleJoin(client peer, req messages.JoinRequest) {
	if _, ok := s.conns[client]; ok {
		log.Printf("[server] duplicate join from %s", client.Id())
		return
	}
	if s.version != "" && req.Version != s.version {
		s.reject(client, "version mismatch: server requires "+s.version)
		return
	}

	var claims *SessionClaims
	if s.auth != nil {
		var err error
		if claims, err = s.auth.Verify(req.Token); err != nil {
			s.reject(client, err.Error())
			return
		}
	}

	s.nextID++
	id := s.nextID
	s.conns[client] = id
	s.clients[id] = client
	if s.auth != nil {
		s.auth.Admit(id, claims)
	}
	s.setPlayers(len(s.clients))

	log.Printf("[server] %q joined as connection %d", req.PlayerName, id)
	s.SendTo(id, messages.JoinAccepted{
		NetworkID:  esync.NetworkId(id),
		ServerName: s.name,
		TickRate:   s.tickRate,
		Config:     messages.ToSettings(s.configs.For(id)),
	})
}

func (s *Server) reject(client peer, reason string) {
	log.Printf("[server] rejecting %s: %s", client.Id(), reason)
	if err := client.SendMessage(messages.JoinRejected{Reason: reason}); err != nil {
		log.Printf("[server] send rejection to %s: %v", client.Id(), err)
	}
}

func (s *Server) handleDisconnect(client peer) {
	id, ok := s.conns[client]
	if !ok {
		return
	}
	delete(s.conns, client)
	delete(s.clients, id)
	s.machine.Disconnect(id)
	s.latency.Forget(id)
	s.configs.Clear(id)
	if s.auth != nil {
		s.auth.Drop(id)
	}
	s.setPlayers(len(s.clients))
	log.Printf("[server] connection %d left", id)
}

func (s *Server) handleProbe(client peer, probe messages.LatencyProbe) {
	id, ok := s.conns[client]
	if !ok {
		return
	}
	s.SendTo(id, s.latency.Echo(id, probe))
}

func (s *Server) dispatch(client peer, msg any) {
	id, ok := s.conns[client]
	if !ok {
		log.Printf("[server] dropping %T from %s: not joined", msg, client.Id())
		return
	}
	s.machine.HandleMessage(id, msg)
}

// pushConfig tells the affected clients their prediction settings changed.
func (s *Server) pushConfig(conn netconfig.ConnectionID, cfg config.PredictionConfig, all bool) {
	if !all {
		s.SendTo(conn, messages.ConfigUpdate{Config: messages.ToSettings(cfg)})
		return
	}
	for _, id := range s.Peers() {
		s.SendTo(id, messages.ConfigUpdate{Config: messages.ToSettings(s.configs.For(id))})
	}
}

// SendToHost implements systems.Outbox. The host never sends to itself.
func (s *Server) SendToHost(msg any) {
	log.Printf("[server] dropping %T addressed to the host", msg)
}

// SendTo implements systems.Outbox.
func (s *Server) SendTo(conn netconfig.ConnectionID, msg any) {
	client, ok := s.clients[conn]
	if !ok {
		return
	}
	if err := client.SendMessage(msg); err != nil {
		log.Printf("[server] send %T to %d: %v", msg, conn, err)
	}
}

// Peers implements systems.Outbox.
func (s *Server) Peers() []netconfig.ConnectionID {
	ids := make([]netconfig.ConnectionID, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Server) setPlayers(n int) {
	s.mu.Lock()
	s.players = n
	s.mu.Unlock()
}

// PlayerCount returns the number of joined clients. Safe from any goroutine.
func (s *Server) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players
}
