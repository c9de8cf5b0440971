package main

import (
	"context"
	"flag"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/network"
	"github.com/automoto/boomsync/physics"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/automoto/boomsync/systems"
)

const joinTimeout = 10 * time.Second

func main() {
	address := flag.String("addr", "localhost:7373", "Host address")
	name := flag.String("name", "bot", "Player name")
	version := flag.String("version", "", "Client version sent on join")
	token := flag.String("token", "", "Session token issued by the host")
	assets := flag.String("assets", "assets", "Assets directory")
	level := flag.String("level", "", "Level the host runs (empty = walled box)")
	fireEvery := flag.Duration("fire", time.Second, "Interval between shots")
	archetype := flag.String("archetype", "boomerang", "Archetype to throw")
	flag.Parse()

	arena, err := physics.LoadArena(*assets, *level)
	if err != nil {
		log.Fatalf("Failed to load arena: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	latency := network.NewLatencyTracker(network.DefaultSmoothing, time.Now)
	client := network.NewClient(latency)
	client.Connect(*address, *version, *name, *token)
	defer client.Disconnect()

	if err := waitForJoin(ctx, client); err != nil {
		log.Fatalf("Join failed: %v", err)
	}

	configs := config.NewStore(client.Settings().Config())
	machine := systems.NewMachine(systems.Options{
		Mode:     systems.ClientMode,
		Local:    client.ConnectionID(),
		Collider: arena,
		Configs:  configs,
		Outbox:   client,
		Effects:  systems.LogEffects{Name: *name},
		Latency:  latency,
	})
	session := network.NewSession(client, machine, latency, configs, network.DefaultProbeInterval)

	tickRate := client.TickRate()
	if tickRate <= 0 {
		tickRate = config.Simulation.TickRate
	}
	dt := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()
	fire := time.NewTicker(*fireEvery)
	defer fire.Stop()

	caller := netconfig.TargetRef(*name)
	for {
		select {
		case <-ctx.Done():
			log.Println("[client] shutting down")
			return
		case <-fire.C:
			shot, err := machine.Fire(systems.FireRequest{
				Archetype: *archetype,
				Origin: gamemath.Transform{
					Position: gamemath.V(320+rand.Float64()*640, 180+rand.Float64()*360),
					Rotation: rand.Float64() * 2 * math.Pi,
				},
				Caller: caller,
			})
			if err != nil {
				log.Printf("[client] fire: %v", err)
				continue
			}
			log.Printf("[client] fired shot %d (rtt %v)", shot, latency.RTT(netconfig.HostConnection))
		case <-ticker.C:
			if client.State() != network.StateJoinedGame {
				log.Printf("[client] lost the host: %v", client.LastError())
				os.Exit(1)
			}
			session.Tick(dt)
		}
	}
}

func waitForJoin(ctx context.Context, client *network.Client) error {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()
	for {
		switch client.State() {
		case network.StateJoinedGame:
			return nil
		case network.StateError:
			return client.LastError()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		}
	}
}
