// Command calltoken prints an access token for the UI of the configured
// participant.
package main

import (
	"flag"
	"fmt"
	"os"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/services"
	"rillcall/pkg/config"
	"rillcall/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	username := flag.String("username", "", "override participant username")
	clientID := flag.String("client-id", "", "client id recorded in the token")
	flag.Parse()

	log := logger.New("info").Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("Invalid configuration", "error", err)
	}

	p := domain.ParticipantID{Username: cfg.Participant.Username, ClientID: cfg.Participant.ClientID}
	if *username != "" {
		p.Username = *username
	}
	if *clientID != "" {
		p.ClientID = *clientID
	}

	token, err := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL).GenerateToken(p)
	if err != nil {
		log.Fatalw("Failed to sign token", "error", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
