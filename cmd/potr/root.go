package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/turbokube/potr/pkg/engine"
	"github.com/turbokube/potr/pkg/potr"
	"github.com/turbokube/potr/pkg/schema"
	schemav1 "github.com/turbokube/potr/pkg/schema/v1"
	"go.uber.org/zap"
)

// BUILD is set to the release version by the linker
var BUILD = "development"

var (
	debug      bool
	sudo       bool
	version    bool
	configPath string
	timeout    string
)

var rootCmd = &cobra.Command{
	Use:          "potr",
	Short:        "potr project pipeline: build container, verify, run, deploy",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if version {
			fmt.Fprintf(os.Stderr, "%s\n", BUILD)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "logs at debug level")
	rootCmd.PersistentFlags().BoolVarP(&sudo, "sudo", "s", false, "force sudo for engine invocations")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "potr.conf", "project config path, or - for stdin")
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "", "engine invocation timeout override, Go duration")
	rootCmd.Flags().BoolVar(&version, "version", false, "print build version and exit")

	rootCmd.AddCommand(newBuildContainerCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSbomCmd())
}

// setupLogger installs the CLI logger as the zap global
func setupLogger() func() {
	logger := newLogger()
	undo := zap.ReplaceGlobals(logger)
	return func() {
		logger.Sync()
		undo()
	}
}

// setupConfig parses the project config and derives the project root,
// the directory the config file lives in
func setupConfig() (schemav1.PotrConfig, string, error) {
	config, err := schema.ParseConfig(configPath)
	if err != nil {
		return config, "", err
	}
	if configPath == "-" {
		root, err := os.Getwd()
		return config, root, err
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return config, "", err
	}
	return config, filepath.Dir(abs), nil
}

// resolve returns rel against the project root, absolute paths kept
func resolve(root string, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(root, rel)
}

func setupEngine(ctx context.Context, config schemav1.PotrConfig) (*engine.Engine, error) {
	engineTimeout := config.Engine.Timeout
	if timeout != "" {
		engineTimeout = timeout
	}
	d, err := time.ParseDuration(engineTimeout)
	if err != nil {
		return nil, fmt.Errorf("engine timeout %q: %w", engineTimeout, err)
	}
	sudoPolicy := config.Engine.Sudo
	if sudo {
		sudoPolicy = engine.SudoAlways
	}
	return engine.Detect(ctx, engine.Config{
		Binary:     config.Engine.Binary,
		ArgsCommon: config.ArgsCommon,
		Timeout:    d,
	}, sudoPolicy)
}

// setupPipeline is the shared entry for the engine-backed commands
func setupPipeline(ctx context.Context) (*potr.Pipeline, func(), error) {
	teardown := setupLogger()
	config, root, err := setupConfig()
	if err != nil {
		teardown()
		return nil, nil, err
	}
	eng, err := setupEngine(ctx, config)
	if err != nil {
		teardown()
		return nil, nil, err
	}
	p, err := potr.NewPipeline(config, eng, root)
	if err != nil {
		teardown()
		return nil, nil, err
	}
	done := func() {
		if err := p.Close(); err != nil {
			zap.L().Warn("pipeline close", zap.Error(err))
		}
		teardown()
	}
	return p, done, nil
}
