// Command bot is a headless arena player. It wanders and shoots, runs the
// prediction engine every frame and logs how far the server corrects it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"arena/internal/client"
	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/physics"
	"arena/internal/prediction"
	"arena/internal/protocol"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}
	appConfig := config.Load()

	defaultURL := "ws://localhost:" + strconv.Itoa(appConfig.Server.Port) + "/ws"
	serverURL := flag.String("url", defaultURL, "server WebSocket URL")
	name := flag.String("name", "", "display name (server picks one if empty)")
	codecName := flag.String("codec", appConfig.Server.WireCodec, "wire codec: json or msgpack")
	duration := flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	flag.Parse()

	codec, err := protocol.CodecByName(*codecName)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if err := run(ctx, *serverURL, *name, codec, appConfig); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Fatalf("❌ %v", err)
	}
	log.Println("👋 Bot stopped")
}

func run(ctx context.Context, serverURL, name string, codec protocol.Codec, appConfig config.AppConfig) error {
	log.Printf("🔌 Connecting to %s (%s)...", serverURL, codec.Name())
	c, err := client.Dial(ctx, serverURL, name, codec)
	if err != nil {
		return err
	}
	defer c.Close()

	welcome := c.Welcome()
	log.Printf("✅ Joined as #%d in a %.0fx%.0f arena at %d TPS",
		welcome.ID, welcome.Arena.Width, welcome.Arena.Height, welcome.TickRate)

	// The server's arena size and tick rate win over local config
	arenaCfg := appConfig.Arena
	arenaCfg.Width, arenaCfg.Height = welcome.Arena.Width, welcome.Arena.Height
	simCfg := appConfig.Sim
	if welcome.TickRate > 0 {
		simCfg.TickRate = welcome.TickRate
	}

	b := &bot{
		client:    c,
		predictor: prediction.New(welcome.ID, arenaCfg, simCfg),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		start:     time.Now(),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx, client.Handlers{OnState: b.onState})
	}()

	frames := time.NewTicker(simCfg.TickInterval())
	defer frames.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return fmt.Errorf("connection lost: %w", err)
		case <-frames.C:
			if err := b.frame(); err != nil {
				return err
			}
		case <-report.C:
			b.report()
		}
	}
}

// bot owns the predictor. The frame loop and the read goroutine share it,
// so every access holds mu.
type bot struct {
	client    *client.Client
	predictor *prediction.Predictor
	rng       *rand.Rand
	start     time.Time

	mu         sync.Mutex
	frames     int
	input      game.Input
	lastReload time.Duration
}

func (b *bot) now() time.Duration {
	return time.Since(b.start)
}

// frame steps the shadow world and changes course every half second
func (b *bot) frame() error {
	b.mu.Lock()
	now := b.now()
	b.predictor.Frame(now)
	b.frames++

	var send *protocol.InputMessage
	if b.frames%30 == 1 {
		b.input = b.wander()
		msg := b.predictor.Input(b.input, now)
		send = &msg
	}

	reload := b.predictor.Ammo() == 0 && !b.predictor.State().Eliminated &&
		now-b.lastReload > 2*time.Second
	if reload {
		b.lastReload = now
	}
	b.mu.Unlock()

	if send != nil {
		if err := b.client.SendInput(*send); err != nil {
			return err
		}
	}
	if reload {
		return b.client.SendReload()
	}
	return nil
}

// wander picks a random direction, aims somewhere random and fires half
// the time
func (b *bot) wander() game.Input {
	in := game.Input{
		Up:    b.rng.Intn(3) == 0,
		Down:  b.rng.Intn(3) == 0,
		Left:  b.rng.Intn(3) == 0,
		Right: b.rng.Intn(3) == 0,
		Fire:  b.rng.Intn(2) == 0,
		Angle: b.rng.Float64()*2*math.Pi - math.Pi,
	}
	if pos, ok := b.predictor.Position(); ok {
		aim := pos.Add(physics.FromAngle(in.Angle, 100))
		in.MouseX, in.MouseY = aim.X, aim.Y
	}
	return in
}

func (b *bot) onState(state *protocol.GameState) {
	b.mu.Lock()
	c := b.predictor.Reconcile(state, b.now())
	b.mu.Unlock()

	switch {
	case !c.Found:
		log.Printf("⚠️ Tick %d has no entry for us", state.Tick)
	case c.Created:
		log.Printf("🎯 Shadow body created at tick %d", state.Tick)
	case c.Distance > 5 && c.LastSeq != 0:
		log.Printf("📐 Tick %d: corrected %.1f units, dropped %d inputs (newest #%d sent at %.0f,%.0f), %d speculative shots",
			state.Tick, c.Distance, c.Dropped, c.LastSeq, c.SentAt.X, c.SentAt.Y, c.Speculative)
	case c.Distance > 5:
		log.Printf("📐 Tick %d: corrected %.1f units, %d speculative shots",
			state.Tick, c.Distance, c.Speculative)
	}
}

func (b *bot) report() {
	b.mu.Lock()
	stats := b.predictor.Stats()
	st := b.predictor.State()
	b.mu.Unlock()

	log.Printf("📊 inputs=%d reconciles=%d maxCorrection=%.1f dropped=%d shots=%d | hp=%d score=%d elims=%d",
		stats.Inputs, stats.Reconciles, stats.MaxCorrection, stats.TotalDropped, stats.SpeculativeFired,
		st.Health, st.Score, st.Eliminations)
}
