package core

import (
	"context"
	"log"
	"time"

	"github.com/automoto/boomsync/config"
)

type GameLoop struct {
	server   *Server
	tickRate int
}

// NewGameLoop falls back to the configured simulation rate when tickRate is
// not positive.
func NewGameLoop(server *Server, tickRate int) *GameLoop {
	if tickRate <= 0 {
		log.Printf("[loop] invalid tick rate %d, using %d", tickRate, config.Simulation.TickRate)
		tickRate = config.Simulation.TickRate
	}
	return &GameLoop{
		server:   server,
		tickRate: tickRate,
	}
}

// Run ticks the server until ctx is cancelled.
func (g *GameLoop) Run(ctx context.Context) error {
	dt := time.Second / time.Duration(g.tickRate)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	log.Printf("[loop] started at %d ticks/second", g.tickRate)

	for {
		select {
		case <-ctx.Done():
			log.Println("[loop] stopped")
			return nil
		case <-ticker.C:
			g.server.Tick(dt)
		}
	}
}
