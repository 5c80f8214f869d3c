package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"github.com/valkyrion/radiobot/internal/broadcast"
	"github.com/valkyrion/radiobot/internal/config"
	"github.com/valkyrion/radiobot/internal/handlers"
	"github.com/valkyrion/radiobot/internal/radio"
	"github.com/valkyrion/radiobot/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	repo := repository.NewRepo(db)

	emitter := radio.NewEmitter()
	pub, err := broadcast.Connect(cfg.AMQPURL, cfg.BroadcastExchange)
	if err != nil {
		log.Fatal(err)
	}
	if pub != nil {
		emitter.Subscribe(pub)
		defer pub.Close()
	}

	bot := handlers.NewBot(cfg, repo, emitter)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
