package main

import (
	"log"

	"github.com/portalstack/portal-server/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ portal-server failed to start: %v", err)
	}
}
