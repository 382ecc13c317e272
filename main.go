package main

import (
	"context"
	"net/http"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"melodex/aggregator"
	"melodex/config"
	"melodex/database"
	"melodex/discover"
	"melodex/handlers"
	"melodex/jamendo"
	"melodex/jiosaavn"
	"melodex/lyrics"
	"melodex/media"
	"melodex/player"
	"melodex/proxy"
	"melodex/resolver"
	"melodex/sentry"
	"melodex/soundcloud"
	"melodex/spotify"
)

const proxyPath = "/api/proxy/audio"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warnf("Error loading .env file: %v", err)
	}

	log.SetFormatter(&nested.Formatter{
		FieldsOrder: []string{"module"},
	})
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	config.NewConfig()
	sentry.Init()
	defer sentry.Flush()

	if err := run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	db, err := database.New(config.Config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	jamendoClient := jamendo.NewClient()

	var adapters []aggregator.Adapter
	if config.Config.Spotify.Enabled {
		spotifyClient, err := spotify.NewClient(ctx)
		if err != nil {
			log.Errorf("Spotify unavailable, continuing without it: %v", err)
		} else {
			adapters = append(adapters, spotifyClient)
		}
	}
	if config.Config.JioSaavn.Enabled {
		adapters = append(adapters, jiosaavn.NewClient())
	}
	if config.Config.SoundCloud.Enabled {
		adapters = append(adapters, soundcloud.NewClient())
	}
	if config.Config.Jamendo.Enabled {
		adapters = append(adapters, jamendoClient)
	}
	if len(adapters) == 0 {
		log.Warn("No providers enabled; every search will fail until one is configured")
	}

	agg := aggregator.New(adapters...)
	lyricsClient := lyrics.New()
	disc := discover.New(agg, jamendoClient, lyricsClient)
	res := resolver.New(proxyPath)

	var engine *player.Engine
	if config.Config.Options.PlayerEnabled {
		handle := media.NewHandle()
		engine, err = player.NewEngine(handle, res)
		if err != nil {
			return err
		}
		defer engine.Close()
		log.Info("Local playback engine enabled")
	}

	router := gin.Default()
	router.Use(sentry.GetSentryGin())

	h := handlers.New(agg, disc, res, lyricsClient, db, proxy.New(), engine)
	h.Register(router)

	port := config.Config.Options.Port
	if port == "" {
		port = "8080"
	}
	log.Infof("Starting server on :%s", port)
	return http.ListenAndServe(":"+port, router)
}
