package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/p5quared/openoutcry/internal/demoserver"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	addr := os.Getenv("OPENOUTCRY_DEMO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := demoserver.New(context.Background(), logger)
	defer srv.Stop()

	logger.Info("demo server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, demoserver.Routes(srv)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
