package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"dlev/finsync/cmd/accounts"
	"dlev/finsync/cmd/categorize"
	"dlev/finsync/cmd/export"
	"dlev/finsync/cmd/history"
	"dlev/finsync/cmd/report"
	"dlev/finsync/cmd/root"
	"dlev/finsync/cmd/sync"
	"dlev/finsync/cmd/transactions"
)

func init() {
	loadEnvSilently()

	root.Init()

	root.Cmd.AddCommand(sync.Cmd)
	root.Cmd.AddCommand(accounts.Cmd)
	root.Cmd.AddCommand(transactions.Cmd)
	root.Cmd.AddCommand(history.Cmd)
	root.Cmd.AddCommand(report.Cmd)
	root.Cmd.AddCommand(categorize.Cmd)
	root.Cmd.AddCommand(export.Cmd)
}

// loadEnvSilently loads environment variables without logging anything;
// logging is not configured yet at this point.
func loadEnvSilently() {
	envFile := ".env"
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
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
