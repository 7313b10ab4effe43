package cmd

import (
	"context"
	"log"

	"github.com/vacradar/vacradar/internal/logger"
	"github.com/vacradar/vacradar/internal/reconciler"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Run a classification cycle now?",
	Items: []string{PromptYes, PromptNo},
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single classification cycle and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		cycle(cmd)
	},
}

func init() {
	rootCmd.AddCommand(cycleCmd)

	cycleCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

// cycle runs the batch classification once, outside of the scheduler. Useful
// for draining the backlog manually or testing a prompt change.
func cycle(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if cmd.Flag("yes").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	deps, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("wiring dependencies", zap.Error(err))
	}
	defer deps.store.Close()

	recon := reconciler.New(deps.store, deps.classifier, deps.notifier, config.Classifier.BatchSize, logger)

	if err := recon.Cycle(ctx); err != nil {
		logger.Fatal("classification cycle failed", zap.Error(err))
	}
}
