package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"docqa/internal/api"
	"docqa/internal/apperr"
	"docqa/internal/config"
	"docqa/internal/extract"
	"docqa/internal/ingest"
	"docqa/internal/logging"
	"docqa/internal/providers"
	"docqa/internal/retrieval"
	"docqa/internal/themes"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/postgres"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logging.Setup(os.Getenv("DOCQA_LOG_LEVEL"), os.Getenv("DOCQA_LOG_PRETTY") == "true")
	log := logging.Component("main")

	ctx := context.Background()

	var store vectorstore.Store
	switch cfg.VectorBackend {
	case "memory":
		store = memory.New()
	case "postgres":
		pg, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pg.Close()
		store = pg
	default:
		err := apperr.Config(fmt.Errorf("unknown vector backend %q", cfg.VectorBackend))
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	manager, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("provider setup failed")
	}

	extractor := extract.New(extract.NewTesseractEngine(cfg.OCRLang, cfg.OCRDPI), cfg.OCRThreshold)
	server := api.NewServer(cfg,
		ingest.New(extractor, manager, store, cfg),
		retrieval.New(manager, store),
		themes.New(manager, store),
		store, manager)

	log.Info().
		Str("addr", cfg.APIAddr).
		Str("vector_backend", cfg.VectorBackend).
		Strs("llm_providers", manager.LLMRefs()).
		Strs("embed_providers", manager.EmbedRefs()).
		Msg("listening")
	if err := http.ListenAndServe(cfg.APIAddr, server.Handler()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
