// Command tokengen mints a signed access token for one user id with the
// same secret, issuer and TTL the server validates against. Operators use
// it to open a socket by hand when the account service is not available.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Riyakuila/Chat-Flow/internal/config"
	"github.com/Riyakuila/Chat-Flow/internal/core/services"
	"github.com/Riyakuila/Chat-Flow/internal/platform/logger"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

func main() {
	userID := flag.String("user", "", "user id to put in the token subject")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.NewLogger(*cfg)
	if *userID == "" {
		log.Error("tokengen - missing -user")
		os.Exit(2)
	}

	token, err := services.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).GenerateToken(*userID)
	if err != nil {
		log.Error("tokengen - sign failed", logging.User(*userID), logging.Err(err))
		os.Exit(1)
	}
	fmt.Println(token)
}
