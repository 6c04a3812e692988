package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/novanet/novanet/config"
	"github.com/novanet/novanet/daemon"
	"github.com/novanet/novanet/log"
)

// Automatically set through -ldflags, the teacher's own convention
// (cmd/drand/main.go).
var (
	version   = "dev"
	gitCommit = "none"
	buildDate = "unknown"
)

func banner() {
	fmt.Printf("novanet-node %s (date %s, commit %s)\n", version, buildDate, gitCommit)
}

var folderFlag = &cli.StringFlag{
	Name:  "folder",
	Value: defaultDataDir(),
	Usage: "Directory to keep this node's identity, config, and chunk store in.",
}

var addressFlag = &cli.StringFlag{
	Name:  "address",
	Value: "127.0.0.1:9000",
	Usage: "Address other nodes should dial to reach this node.",
}

var metricsFlag = &cli.StringFlag{
	Name:  "metrics",
	Usage: "Bind a prometheus metrics server at the given (host:)port.",
}

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "If set, verbosity is at the debug level.",
}

var genesisFlag = &cli.BoolFlag{
	Name:  "genesis",
	Usage: "Bootstrap a brand new, single-elder section instead of joining an existing one.",
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".novanet"
	}
	return home + "/.novanet"
}

// CLI builds and runs the novanet-node command tree. Grounded on the
// teacher's CLI() in cmd/drand/main.go: one cli.App, a package-level
// flag var block shared across commands, a start command that blocks
// until the daemon exits.
func CLI() {
	app := cli.NewApp()
	app.Name = "novanet-node"
	app.Usage = "run one node of a novanet network"
	app.Version = version
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("novanet-node %s (date %s, commit %s)\n", version, buildDate, gitCommit)
	}

	app.Commands = []*cli.Command{
		{
			Name:  "start",
			Usage: "Start the novanet-node daemon.",
			Flags: []cli.Flag{folderFlag, addressFlag, metricsFlag, verboseFlag, genesisFlag},
			Action: func(c *cli.Context) error {
				banner()
				return startCmd(c)
			},
		},
		{
			Name:  "config",
			Usage: "Print the effective config for this node's folder, generating a default one if absent.",
			Flags: []cli.Flag{folderFlag},
			Action: func(c *cli.Context) error {
				return configCmd(c)
			},
		},
	}
	app.Flags = []cli.Flag{verboseFlag}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "novanet-node: %s\n", err)
		os.Exit(1)
	}
}

func loggerFromContext(c *cli.Context) log.Logger {
	level := log.LogInfo
	if c.Bool(verboseFlag.Name) {
		level = log.LogDebug
	}
	return log.NewLogger(nil, level)
}

func configPath(dataDir string) string {
	return dataDir + "/novanet.toml"
}

func loadOrDefaultConfig(dataDir string) (config.Config, error) {
	path := configPath(dataDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return config.Config{}, err
		}
		if err := config.Save(path, cfg); err != nil {
			return config.Config{}, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

func configCmd(c *cli.Context) error {
	dataDir := c.String(folderFlag.Name)
	cfg, err := loadOrDefaultConfig(dataDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	fmt.Printf("%+v\n", cfg)
	return nil
}

func startCmd(c *cli.Context) error {
	dataDir := c.String(folderFlag.Name)
	l := loggerFromContext(c)

	cfg, err := loadOrDefaultConfig(dataDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	self, err := daemon.LoadOrCreateIdentity(dataDir, c.String(addressFlag.Name))
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}

	var params daemon.Params
	if c.Bool(genesisFlag.Name) {
		params, err = daemon.Genesis(self)
		if err != nil {
			return fmt.Errorf("bootstrapping genesis section: %w", err)
		}
	} else {
		return fmt.Errorf("start cannot join an existing network; pass --genesis to start a fresh section")
	}
	params.DataDir = dataDir
	params.MetricsBind = c.String(metricsFlag.Name)

	d, err := daemon.NewDaemon(cfg, l, params)
	if err != nil {
		return fmt.Errorf("constructing daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-d.WaitExit():
		return nil
	}
}
