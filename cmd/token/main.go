package main

import (
	"adoption-chat/auth"
	"adoption-chat/domain/chat"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	AuthTokenDuration time.Duration `envconfig:"AUTH_TOKEN_DURATION" default:"24h"`
}

// token prints a development JWT for CHAT_TOKEN, signed with the server's JWT_SECRET.
func main() {
	userID := flag.String("user", "", "User id carried as the token subject")
	displayName := flag.String("name", "", "Display name shown next to messages")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	signer := auth.NewSigner(config.JWTSecret, config.AuthTokenDuration)
	token, err := signer.GenerateToken(chat.Author{ID: *userID, DisplayName: *displayName})
	if err != nil {
		log.Fatalf("Token generation failed: %v", err)
	}
	fmt.Println(token)
}
