package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"genai-auto/internal/config"
)

const configFilePath = "./configs/config.yaml"

type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	c := &cli{}
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Index, query and evaluate the vehicle knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", configFilePath, "config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level, overrides the config")

	root.AddCommand(
		c.ingestCMD(),
		c.queryCMD(),
		c.contextCMD(),
		c.askCMD(),
		c.deleteCMD(),
		c.sourcesCMD(),
		c.statsCMD(),
		c.exportCMD(),
		c.importCMD(),
		c.evalCMD(),
	)

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func (c *cli) load() error {
	cfg, err := config.LoadConfig(c.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && c.configPath == configFilePath:
		log.Warn().Str("path", c.configPath).Msg("Config file not found, using defaults")
		cfg = config.Default()
	case err != nil:
		return err
	}
	level := cfg.LogLevel
	if c.logLevel != "" {
		level = c.logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	log.Debug().Str("path", c.configPath).Str("backend", cfg.VectorStore.Backend).Msg("Loaded config")
	c.cfg = cfg
	return nil
}
