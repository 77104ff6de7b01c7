package main

import (
	"context"
	"flag"
	"fmt"

	"gitlab.com/dirk.krummacker/contact-cards/internal/config"
	"gitlab.com/dirk.krummacker/contact-cards/internal/store"
)

// Usage example on the command line:
// > DB_DRIVER=mysql DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go -command=up
func main() {
	commandPtr := flag.String("command", "up", "the migration command to run: up, down, or status")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	sqlDB, err := store.OpenDatabase(cfg.DBDriver, cfg.DSN())
	if err != nil {
		panic(err)
	}
	defer sqlDB.Close()

	provider, err := store.NewMigrator(sqlDB, cfg.DBDriver)
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	switch *commandPtr {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			panic(err)
		}
		for _, r := range results {
			fmt.Println(r)
		}
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			panic(err)
		}
		fmt.Println(result)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			panic(err)
		}
		for _, s := range statuses {
			fmt.Printf("%-10s %s\n", s.State, s.Source.Path)
		}
	default:
		panic(fmt.Sprintf("unknown command %q", *commandPtr))
	}
}
