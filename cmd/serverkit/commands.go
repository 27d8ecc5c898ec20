package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kbukum/serverkit/bootstrap"
	"github.com/kbukum/serverkit/config"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/version"
)

const serviceName = "serverkit"

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the server config file",
	}
	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "path to a .env file",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:    serviceName,
		Usage:   "boot a server from its persisted configuration",
		Version: version.Get().Short(),
		Commands: []*cli.Command{
			runCommand(),
			checkConfigCommand(),
			versionCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	var opts []config.LoaderOption
	if path := c.String(configFlag.Name); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if path := c.String(envFileFlag.Name); path != "" {
		opts = append(opts, config.WithEnvFile(path))
	}
	cfg, err := config.Load(serviceName, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Version == "" {
		cfg.Version = version.Version
	}
	return cfg, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "boot the server and block until interrupted",
		Flags: []cli.Flag{configFlag, envFileFlag},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return err
			}
			app.Logger.Info("Build", version.Get().Fields())
			return app.Run(c.Context)
		},
	}
}

func checkConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-config",
		Usage: "validate the server config and read the persisted configuration document",
		Flags: []cli.Flag{configFlag, envFileFlag},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(logger.Nop()))
			if err != nil {
				return err
			}

			bc := app.Configuration()
			p := bc.PersisterFactory().CreatePersister(bc.Environment(), nil)
			doc, err := p.Load(c.Context)
			if err != nil {
				return err
			}

			w := c.App.Writer
			fmt.Fprintf(w, "server:      %s\n", cfg.Name)
			fmt.Fprintf(w, "persistence: %s\n", bc.PersistenceStrategy())
			if env := bc.Environment(); env != nil {
				fmt.Fprintf(w, "file:        %s\n", env.ConfigurationFile())
			}
			fmt.Fprintf(w, "extensions:  %d\n", len(doc.Extensions))
			fmt.Fprintf(w, "subsystems:  %d\n", len(doc.Subsystems))
			fmt.Fprintf(w, "deployments: %d\n", len(doc.Deployments))
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print build information",
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, version.Get().String())
			return nil
		},
	}
}
