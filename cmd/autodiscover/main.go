package main

import (
	"flag"
	"fmt"
	"os"

	"reddit_river/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] <url>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*configPath, flag.Arg(0)))
}

func run(configPath, target string) int {
	cfg, logger, err := app.Bootstrap(configPath)
	if err != nil {
		return 1
	}

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	d, err := app.NewDiscoverer(cfg.Discovery, logger)
	if err != nil {
		logger.Error("failed to load discovery rules", "error", err)
		return 1
	}

	res := d.Discover(ctx, target)
	if res.Err != nil {
		logger.Error("discovery failed", "url", target, "error", res.Err)
	}
	if !res.Found {
		fmt.Println("no alternate version found")
		return 1
	}
	fmt.Println(res.URL)
	return 0
}
