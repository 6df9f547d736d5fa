package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nprieur/maitred/internal/agent"
	"github.com/nprieur/maitred/internal/brain"
	"github.com/nprieur/maitred/internal/calls"
	"github.com/nprieur/maitred/internal/config"
	"github.com/nprieur/maitred/internal/dispatch"
	"github.com/nprieur/maitred/internal/events"
	"github.com/nprieur/maitred/internal/lang"
	"github.com/nprieur/maitred/internal/observability"
	"github.com/nprieur/maitred/internal/phone"
	"github.com/nprieur/maitred/internal/router"
	"github.com/nprieur/maitred/internal/speech"
	"github.com/nprieur/maitred/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	hub := events.NewHub()

	phrases, err := config.LoadPhraseBook(cfg.PhrasesPath)
	if err != nil {
		log.Fatalf("phrase book init failed: %v", err)
	}

	ctx := context.Background()
	directory, err := store.New(ctx, store.Config{
		Mode:        cfg.StoreMode,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer directory.Close()

	brainClient, err := brain.NewClient(brain.Config{
		Mode:   cfg.BrainMode,
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.BrainModel,
	})
	if err != nil {
		log.Fatalf("reasoning client init failed: %v", err)
	}

	stt, tts, err := speech.NewProvider(speech.Config{
		Mode:     cfg.SpeechMode,
		APIKey:   cfg.OpenAIAPIKey,
		STTModel: cfg.STTModel,
		TTSModel: cfg.TTSModel,
		TTSVoice: cfg.TTSVoice,
	})
	if err != nil {
		log.Fatalf("speech provider init failed: %v", err)
	}

	translator, err := lang.NewTranslator(cfg.TranslateMode)
	if err != nil {
		log.Fatalf("translator init failed: %v", err)
	}
	normalizer := lang.NewNormalizer(translator)

	library, err := speech.NewLibrary(cfg.AudioDir, cfg.BaseURL)
	if err != nil {
		log.Fatalf("audio library init failed: %v", err)
	}
	startup := phrases.Current()
	if err := library.EnsureStatic(ctx, tts, map[string]string{
		speech.AssetWelcome: startup.Welcome,
		speech.AssetGoodbye: startup.Goodbye,
		speech.AssetError:   startup.Error,
		speech.AssetHold:    startup.Hold,
	}); err != nil {
		log.Printf("static audio generation incomplete: %v", err)
	}

	registry := calls.NewRegistry(cfg.CallIdleTTL)
	registry.SetExpireHook(func(c *calls.Call) {
		metrics.CallEvents.WithLabelValues("expired").Inc()
		metrics.ActiveCalls.Set(float64(registry.ActiveCount()))
		hub.Publish(events.Event{Type: events.TypeCallExpired, CallID: c.ID})
	})

	intents := router.New(brainClient, cfg.HistoryContextTurns)
	intents.Register(router.IntentReservation, agent.NewReservationHandler(brainClient, directory, cfg.MaxToolIterations))
	intents.Register(router.IntentOrder, agent.NewOrderHandler(brainClient, directory, cfg.MaxToolIterations))
	intents.Register(router.IntentGeneral, agent.NewInquiryHandler(brainClient, directory, cfg.MaxToolIterations))

	dispatcher := dispatch.New(dispatch.Deps{
		Registry:          registry,
		Fetcher:           speech.NewFetcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken),
		Transcriber:       stt,
		Synthesizer:       tts,
		Normalizer:        normalizer,
		Responder:         intents,
		Phrases:           phrases,
		Library:           library,
		Metrics:           metrics,
		Hub:               hub,
		MinRecordingBytes: cfg.MinRecordingBytes,
	})

	api := phone.New(cfg, registry, dispatcher, phrases, library, metrics, hub)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	registry.StartJanitor(runCtx, 30*time.Second)
	if err := phrases.Watch(runCtx); err != nil {
		log.Printf("phrase file watch unavailable: %v", err)
	}

	go func() {
		log.Printf("gateway listening on %s (base url %s)", cfg.BindAddr, cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
