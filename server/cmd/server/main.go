package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/physics"
	"github.com/automoto/boomsync/server/core"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/systems"
	"golang.org/x/sync/errgroup"
)

func main() {
	port := flag.Uint("port", config.Server.Port, "Server port")
	tickRate := flag.Int("tickrate", config.Simulation.TickRate, "Simulation tick rate (updates per second)")
	name := flag.String("name", config.Server.Name, "Server display name")
	version := flag.String("version", "", "Required client version (empty = accept any)")
	secret := flag.String("secret", "", "Session token signing secret (empty = no authorization)")
	shotRate := flag.Float64("shotrate", config.Server.MaxFireRate, "Shots per second allowed per player")
	shotBurst := flag.Int("shotburst", config.Server.FireBurst, "Shot burst allowed per player")
	issue := flag.String("issue", "", "Print a session token for this player and exit")
	allow := flag.String("allow", "", "Comma-separated archetypes the issued token may fire (empty = all)")
	assets := flag.String("assets", "assets", "Assets directory")
	level := flag.String("level", "", "Level name under assets/levels (empty = walled box)")
	botEvery := flag.Duration("bot", 0, "Fire a host shot at this interval (0 = off)")
	persist := flag.Bool("persist", false, "Load and save prediction defaults across restarts")
	flag.Parse()

	var auth *core.SessionAuthorizer
	if *secret != "" {
		auth = core.NewSessionAuthorizer([]byte(*secret), config.Server.SessionIssuer, *shotRate, *shotBurst)
	}

	if *issue != "" {
		if auth == nil {
			log.Fatal("-issue needs -secret")
		}
		var archetypes []string
		if *allow != "" {
			archetypes = strings.Split(*allow, ",")
		}
		token, err := auth.IssueToken(*issue, archetypes, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	arena, err := physics.LoadArena(*assets, *level)
	if err != nil {
		log.Fatalf("Failed to load arena: %v", err)
	}

	configs := config.NewStore(config.DefaultPrediction)
	if *persist {
		p, err := config.OpenPersistence("boomsync")
		if err != nil {
			log.Printf("Persistence disabled: %v", err)
		} else {
			p.Attach(configs)
		}
	}

	server := core.NewServer(core.Options{
		Name:     *name,
		Version:  *version,
		TickRate: *tickRate,
		Arena:    arena,
		Configs:  configs,
		Auth:     auth,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Loop().Run(gctx)
	})
	if *botEvery > 0 {
		g.Go(func() error {
			return fireBot(gctx, server, *botEvery)
		})
	}

	go func() {
		log.Printf("Starting %q on port %d (tick rate: %d/s, version: %s)",
			*name, *port, *tickRate, *version)
		if err := server.Listen(*port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
	log.Println("Server shut down")
}

// fireBot throws host shots in random directions from the arena center.
func fireBot(ctx context.Context, server *core.Server, every time.Duration) error {
	archetypes := []string{"boomerang", "grenade", "knife"}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			server.Fire(systems.FireRequest{
				Archetype: archetypes[rand.IntN(len(archetypes))],
				Origin: gamemath.Transform{
					Position: gamemath.V(640, 360),
					Rotation: rand.Float64() * 2 * math.Pi,
				},
				Caller: "host",
			})
		}
	}
}
