package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/kevinxiao27/yata-text/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	server := NewServer(cfg)

	fmt.Printf("API server starting on %s\n", cfg.Addr())
	fmt.Printf("WebSocket API: ws://%s/ws?doc=<id>\n", cfg.Addr())
	log.Fatal(http.ListenAndServe(cfg.Addr(), server.Router()))
}
