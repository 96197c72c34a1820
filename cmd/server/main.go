// Command server runs the pricewatch HTTP control surface (§6.1): single
// machine extraction, batch dispatch, and the approval workflow.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricewatch/internal/browserpool"
	"pricewatch/internal/config"
	"pricewatch/internal/extractor"
	"pricewatch/internal/handler"
	"pricewatch/internal/orchestrator"
	mongorepo "pricewatch/internal/repository/mongo"
	"pricewatch/internal/router"
	"pricewatch/internal/siterule"
)

func main() {
	cfg := config.Load()

	rules, err := siterule.LoadFromFile(cfg.SiteRulesPath)
	if err != nil {
		log.Fatalf("failed to load site rules: %v", err)
	}

	mongoClient, err := mongorepo.NewClient(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Close(ctx); err != nil {
			log.Printf("error closing Mongo client: %v", err)
		}
	}()

	db := mongoClient.DB()
	st := mongorepo.NewStore(db)
	usageRepo := mongorepo.NewLLMUsageRepository(db)

	browserCtx, cancelBrowsers := context.WithCancel(context.Background())
	defer cancelBrowsers()
	browsers := browserpool.New(browserCtx, cfg.BrowserPoolSize)
	defer browsers.Close()

	fetcher := extractor.NewFetcher(cfg.UserAgent, time.Duration(cfg.FetchTimeoutSecs)*time.Second)
	staticExtractor := extractor.NewStaticExtractor()
	dynamicExtractor := extractor.NewDynamicExtractor(browsers)
	llmExtractor := extractor.NewLLMExtractor(extractor.LLMVendorConfig{
		VendorID:            cfg.LLM.VendorID,
		Model:               cfg.LLM.Model,
		APIKey:              cfg.LLM.APIKeyRef,
		CostPer1MPrompt:     cfg.LLM.CostPer1MPrompt,
		CostPer1MCompletion: cfg.LLM.CostPer1MCompletion,
		MaxPayloadChars:     cfg.LLM.MaxPayloadChars,
	}, nil, usageRepo)

	coreExtractor := &orchestrator.Extractor{
		Fetcher: fetcher,
		Static:  staticExtractor,
		Dynamic: dynamicExtractor,
		LLM:     llmExtractor,
		Rules:   rules,
		Store:   st,

		FetchTimeout:   time.Duration(cfg.FetchTimeoutSecs) * time.Second,
		DynamicTimeout: time.Duration(cfg.DynamicTimeoutSecs) * time.Second,
		LLMTimeout:     time.Duration(cfg.LLMTimeoutSecs) * time.Second,
	}

	batchRunner := orchestrator.NewBatchRunner(coreExtractor, st, orchestrator.BatchConfig{
		Workers:              cfg.Workers,
		PerDomainConcurrency: cfg.PerDomainConcurrency,
		PerMachineTimeout:    time.Duration(cfg.GlobalTimeoutSecs) * time.Second,
	})

	healthHandler := handler.NewHealthHandler()
	extractHandler := handler.NewExtractHandler(coreExtractor)
	batchHandler := handler.NewBatchHandler(batchRunner)
	approvalHandler := handler.NewApprovalHandler(st)

	r := router.NewRouter(healthHandler, extractHandler, batchHandler, approvalHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("pricewatch: starting server on :%s (env=%s)", cfg.AppPort, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("pricewatch: shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("pricewatch: server stopped gracefully")
}
