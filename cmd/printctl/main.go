package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibeprint/printctl/internal/camera"
	"github.com/vibeprint/printctl/internal/config"
	"github.com/vibeprint/printctl/internal/facade"
	"github.com/vibeprint/printctl/internal/iteration"
	"github.com/vibeprint/printctl/internal/printer"
	"github.com/vibeprint/printctl/internal/slicer"
)

const cameraPort = 322

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	envPrefix := flag.String("env-prefix", "", "environment variable prefix for configuration (default PRINTCTL)")
	flag.Parse()

	cfg, err := config.Load(*envPrefix)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("printctl starting")
	log.Printf("Printer: %s (%s)", cfg.PrinterIP, cfg.PrinterModel)

	store, err := iteration.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open iteration store: %v", err)
	}

	var printerCtrl *printer.Controller
	var camSession *camera.Session
	if cfg.PrinterIP != "" {
		printerCtrl = printer.NewController(printer.Endpoint{
			Host:       cfg.PrinterIP,
			Port:       8883,
			AccessCode: cfg.AccessCode,
			Serial:     cfg.Serial,
		})
		camSession = camera.NewSession(camera.Endpoint{
			Host:       cfg.PrinterIP,
			Port:       cameraPort,
			Credential: cfg.AccessCode,
			Path:       "/streaming/live/1",
		})
	} else {
		log.Printf("WARNING: no printer IP configured - running in offline mode")
	}

	var slicerInv *slicer.Invoker
	if cfg.SlicerPath != "" {
		slicerInv = slicer.NewInvoker(cfg.SlicerPath, cfg.SlicerProfiles)
	} else {
		log.Printf("WARNING: no slicer path configured - slicing calls will fail")
	}

	f := facade.New(cfg, printerCtrl, camSession, slicerInv, store)

	if printerCtrl != nil {
		log.Printf("Connecting to printer and camera...")
		result := f.Connect()
		log.Printf("Connect result: %s", result)
	}

	srv := &http.Server{
		Addr:    *addr,
		Handler: facade.NewServer(f).Handler(),
	}

	go func() {
		log.Printf("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	f.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
