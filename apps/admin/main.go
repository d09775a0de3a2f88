package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/portal"
	logsvc "github.com/trezcool/gradebook/services/logger"
	"github.com/trezcool/gradebook/storage"
)

var logger *logsvc.RollbarLogger

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger = logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up the shared store
	ctx := context.Background()
	shared, closeStore, err := storage.Open(ctx, conf.Store, logger)
	errAndDie(err)
	if !storage.Persistent(conf.Store) {
		logger.Warn(fmt.Sprintf("Store %q does not outlive this command: changes will be lost", conf.Store.Driver))
	}

	tab, err := portal.New(ctx, &portal.Options{Store: shared.NewStore(), Logger: logger})
	errAndDie(err)

	// start CLI
	cli := commandLine{tab: tab, out: os.Stdout}
	err = cli.run(os.Args)

	tab.Close()
	if cErr := closeStore(); cErr != nil {
		logger.Error("Failed to close store", cErr)
	}
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
