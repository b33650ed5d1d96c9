package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ttacon/chalk"

	"pongarena/internal/ansii"
	"pongarena/internal/client"
	"pongarena/internal/config"
	"pongarena/internal/netwrk"
	"pongarena/internal/pong"
	"pongarena/internal/renderer"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config, used for the server address and log level")
	addr := flag.String("addr", "", "TCP address of the server (defaults to tcp.addr from the config)")
	token := flag.String("token", os.Getenv("PONG_TOKEN"), "bearer token; empty plays as a guest")
	queue := flag.String("queue", "CASUAL", "queue to enter")
	matches := flag.Int("matches", 1, "matches each bot plays before exiting")
	bots := flag.Int("bots", 1, "number of bots to run side by side")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	watch := flag.Bool("watch", false, "draw the first bot's matches when stdout is a terminal")
	flag.Parse()

	c, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	level, _ := c.Log.SlogLevel()
	slog.SetLogLoggerLevel(level)
	if *addr == "" {
		*addr = c.TCP.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var spectator *renderer.Spectator
	if *watch {
		if width, height, ok := ansii.TermSize(int(os.Stdout.Fd())); ok {
			spectator = &renderer.Spectator{W: os.Stdout, Frame: renderer.FitTerminal(width, height, c.Match)}
			spectator.Hide()
		} else {
			slog.Warn("stdout is not a terminal, not drawing matches")
		}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed bool
	)
	for i := range *bots {
		log := slog.Default().With(slog.Int("bot", i))
		conn, err := netwrk.Dial(ctx, *addr, *token)
		if err != nil {
			log.Error("failed to connect", slog.Any("error", err))
			mu.Lock()
			failed = true
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			bot := &client.Bot{Queue: *queue, Matches: *matches, Log: log}
			if i == 0 && spectator != nil {
				bot.OnState = func(s pong.GameState) {
					if err := spectator.Show(s); err != nil {
						log.Debug("failed to draw frame", slog.Any("error", err))
					}
				}
			}
			report, err := bot.Play(ctx, conn)
			if err != nil {
				log.Error("bot stopped", slog.Any("error", err))
				mu.Lock()
				failed = true
				mu.Unlock()
			}
			log.Info("done",
				slog.Int("played", report.Played),
				slog.Int("won", report.Won),
				slog.Int("failed", report.Failed))
			summarize(i, report)
		}()
	}
	wg.Wait()

	if spectator != nil {
		spectator.Restore()
	}
	if failed {
		os.Exit(1)
	}
}

func summarize(bot int, r client.Report) {
	color := chalk.Yellow
	switch {
	case r.Played > 0 && r.Won*2 > r.Played:
		color = chalk.Green
	case r.Played == 0:
		color = chalk.Red
	}
	fmt.Println(color.Color(fmt.Sprintf("bot %d: won %d of %d matches, %d failed to start", bot, r.Won, r.Played, r.Failed)))
}
