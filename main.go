package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"fjacquet/receiptvault/cmd/backends"
	"fjacquet/receiptvault/cmd/capture"
	"fjacquet/receiptvault/cmd/queue"
	"fjacquet/receiptvault/cmd/root"
	"fjacquet/receiptvault/cmd/sync"
)

func init() {
	// Load environment variables silently first; logging is configured
	// later from the resulting configuration.
	loadEnvSilently()

	root.Init()

	root.Cmd.AddCommand(capture.Cmd)
	root.Cmd.AddCommand(sync.Cmd)
	root.Cmd.AddCommand(queue.Cmd)
	root.Cmd.AddCommand(backends.Cmd)
}

// loadEnvSilently loads environment variables without logging anything
func loadEnvSilently() {
	envFile := ".env"
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// Try to find .env in parent directory (project root)
		envFile = filepath.Join("..", ".env")
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			return
		}
	}

	_ = godotenv.Load(envFile)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
