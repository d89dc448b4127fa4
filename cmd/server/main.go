package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mindscribe.app/journal-assistant/internal/api"
	"mindscribe.app/journal-assistant/internal/config"
	"mindscribe.app/journal-assistant/internal/core"
	"mindscribe.app/journal-assistant/internal/metrics"
	"mindscribe.app/journal-assistant/internal/render"
	"mindscribe.app/journal-assistant/internal/store"
	"mindscribe.app/journal-assistant/internal/worker"
)

// logNotifier stands in for the chat transport, which is a collaborator
// outside this service. Prompt deliveries are logged so the transport layer
// can be wired in later without touching the scheduler.
type logNotifier struct{}

func (logNotifier) NotifyDailyPrompt(_ context.Context, userID, displayName, prompt string) error {
	name := displayName
	if name == "" {
		name = userID
	}
	log.Printf("Daily prompt for %s: %s", name, prompt)
	return nil
}

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for seeding the prompt bank
	seedPromptsFlag := flag.String("seed-prompts", "", "Seed the daily prompt bank from a text file (one prompt per line) and exit")
	flag.Parse()

	// Initialize the canonical file store
	fileStore, err := store.NewFileStore(config.AppConfig.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize file store: %v", err)
	}

	// Initialize the prompt bank
	promptBank, err := store.NewPromptBank(config.AppConfig.PromptsDB)
	if err != nil {
		log.Fatalf("Failed to initialize prompt bank: %v", err)
	}
	defer promptBank.Close()

	if *seedPromptsFlag != "" {
		numSeeded, err := seedPrompts(promptBank, *seedPromptsFlag)
		if err != nil {
			log.Fatalf("Prompt seeding failed: %v", err)
		}
		all, err := promptBank.AllPrompts()
		if err != nil {
			log.Fatalf("Could not read back prompt bank: %v", err)
		}
		log.Printf("Prompt seeding complete. Processed %d lines, bank now holds %d prompts. Exiting.", numSeeded, len(all))
		os.Exit(0)
	}

	// Initialize the inference service
	geminiService, err := core.NewGeminiService(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize Gemini service: %v", err)
	}
	defer geminiService.Close()

	// Initialize the usage ledger (resets session counters)
	ledger, err := core.NewLedger(fileStore)
	if err != nil {
		log.Fatalf("Failed to initialize usage ledger: %v", err)
	}

	collector := metrics.NewCollector()

	aiClient := core.NewAIClient(
		geminiService,
		ledger,
		collector,
		time.Duration(config.AppConfig.InferenceTimeoutSec)*time.Second,
	)
	normalizer := core.NewNormalizer(aiClient)

	renderer, err := render.NewGraphviz(
		filepath.Join(config.AppConfig.DataDir, "visualizations"),
		time.Duration(config.AppConfig.RenderTimeoutSec)*time.Second,
	)
	if err != nil {
		log.Fatalf("Failed to initialize renderer: %v", err)
	}

	pipeline := core.NewPipeline(fileStore, aiClient, ledger, normalizer, renderer, collector, config.AppConfig.HistoryWindow)
	chatService := core.NewChatService(aiClient)

	// Start the daily prompt scheduler
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler := worker.NewPromptScheduler(fileStore, promptBank, logNotifier{})
	go scheduler.Start(schedCtx, time.Duration(config.AppConfig.PromptCheckMinutes)*time.Minute)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(pipeline, chatService, normalizer, fileStore, promptBank)
	router := api.NewRouter(apiHandler, collector)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // analysis runs several inference calls
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopScheduler()

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

// seedPrompts loads prompts into the bank, one per line, skipping blanks and
// # comments.
func seedPrompts(bank *store.PromptBank, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := bank.AddPrompt(line); err != nil {
			return count, err
		}
		count++
	}
	return count, scanner.Err()
}
