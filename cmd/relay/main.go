package main

import (
	"fmt"
	"os"

	"taskforge-chat/internal/app"
	"taskforge-chat/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	os.Exit(app.Run(cfg))
}
