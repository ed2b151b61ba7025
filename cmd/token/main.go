package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"seatwatch/internal/shared/config"
	"seatwatch/internal/shared/middleware"
)

// Mints an API access token for one user, signed with JWT_SECRET.
func main() {
	userID := flag.String("user", "", "user id the token is issued to (required)")
	expires := flag.Duration("expires", 0, "token lifetime; defaults to JWT_EXPIRES_IN")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: token -user <id> [-expires 720h]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	lifetime := cfg.JWT.JWTExpiresIn
	if *expires > 0 {
		lifetime = *expires
	}

	token, err := middleware.NewAccessToken(*userID, cfg.JWT.Secret, lifetime)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
