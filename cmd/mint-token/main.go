// Command mint-token prints a signed development token for the relay.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"taskforge-chat/internal/config"
	"taskforge-chat/internal/identity"
)

func main() {
	user := flag.String("user", "", "username claim (required)")
	email := flag.String("email", "", "email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	token, err := identity.GenerateToken(cfg.JWTSecret, *user, *email, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
