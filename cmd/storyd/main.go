// storyd runs the story engine behind the HTTP API, with optional Postgres
// event storage and MQTT event publishing.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/JuggernautLabs/storyforge/internal/api"
	"github.com/JuggernautLabs/storyforge/internal/config"
	"github.com/JuggernautLabs/storyforge/internal/engine"
	"github.com/JuggernautLabs/storyforge/internal/events"
	"github.com/JuggernautLabs/storyforge/internal/generate"
	"github.com/JuggernautLabs/storyforge/internal/mqtt"
	"github.com/JuggernautLabs/storyforge/internal/storage/postgres"
	"github.com/JuggernautLabs/storyforge/internal/storage/snapshot"
	"github.com/JuggernautLabs/storyforge/internal/version"
)

func main() {
	configPath := flag.String("config", "story.yaml", "path to story.yaml")
	savePath := flag.String("save", "story-save.json", "path to the session snapshot file")
	flag.Parse()

	cfg, err := config.LoadStoryConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", *configPath, err)
	}

	api.InitAuth()
	api.InitTLS()
	api.InitMetrics()
	api.SetStoryID(cfg.Story.ID)

	if cfg.Network.MQTTURL != "" && os.Getenv("MQTT_URL") == "" {
		os.Setenv("MQTT_URL", cfg.Network.MQTTURL)
	}

	bus := events.NewBus(0)

	eng := engine.New(generate.NewMockGenerator(), bus, engine.Options{
		SeedLabel:        cfg.Story.Seed.Label,
		SeedBody:         cfg.Story.Seed.Body,
		StartingGold:     cfg.Economy.StartingGold,
		XPPerLevel:       cfg.Economy.XPPerLevel,
		LevelBonusGold:   cfg.Economy.LevelBonusGold,
		VictoryBonusGold: cfg.Economy.VictoryBonusGold,
		AuditSize:        cfg.Audit.Size,
	})

	// Postgres event storage is optional; the ring buffer still serves
	// /events when it's absent.
	var history api.EventHistory
	if pg, err := postgres.New(cfg.Story.ID); err != nil {
		log.Printf("postgres unavailable, events stay in memory: %v", err)
	} else {
		defer pg.Close()
		bus.SetSink(pg)
		history = pg
		api.SetPostgresConnected(true)
		log.Printf("postgres event storage enabled")
	}

	// MQTT publishing is optional too.
	broker := mqtt.NewClient("storyd-" + cfg.Story.ID)
	if err := broker.Connect(); err != nil {
		log.Printf("mqtt unavailable, events stay local: %v", err)
	} else {
		defer broker.Disconnect()
		pub := mqtt.NewPublisher(broker, bus, cfg.Story.ID)
		pub.Start()
		defer pub.Stop()
		api.SetMQTTConnected(true)
		log.Printf("mqtt publishing enabled at %s", mqtt.BrokerURL())
	}

	store := snapshot.NewFileStore(*savePath)
	if err := eng.Restore(store); err != nil {
		log.Fatalf("failed to restore session: %v", err)
	}

	hostname, _ := os.Hostname()
	bus.EmitSystem("system.startup", "storyd starting", map[string]interface{}{
		"service":  "storyd",
		"story_id": cfg.Story.ID,
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	srv := api.NewServer(eng, bus, store)
	if history != nil {
		srv.SetEventHistory(history)
	}
	if err := srv.ListenAndServe(cfg.APIPort()); err != nil {
		log.Fatalf("api server failed: %v", err)
	}
}
