package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Skufu/medipredict/internal/app"
	"github.com/Skufu/medipredict/internal/config"
	"github.com/Skufu/medipredict/internal/logging"
	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/predict"
)

// version is set via -ldflags at build time.
var version = "(devel)"

type globalFlags struct {
	modelsDir string
	dataDir   string
	backend   string
	onnxLib   string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "medipredict",
		Short:         "Disease prediction from symptoms",
		Long:          "medipredict runs the symptom classifiers offline: predictions, PDF reports and dataset tooling.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.modelsDir, "models", "models", "Directory holding the model artifacts")
	pf.StringVar(&g.dataDir, "data-dir", "data", "Directory holding the severity and disease tables")
	pf.StringVar(&g.backend, "backend", config.BackendNative, "Model backend: native or onnx")
	pf.StringVar(&g.onnxLib, "onnxruntime-lib", "", "Path to the onnxruntime shared library")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newPredictCmd(g),
		newSymptomsCmd(g),
		newReportCmd(g),
		newPreprocessCmd(),
		newEvaluateCmd(g),
	)
	return root
}

func (g *globalFlags) logger() (*zap.Logger, error) {
	return logging.New(g.logLevel, true)
}

func (g *globalFlags) config() *config.Config {
	return &config.Config{
		ModelsDir:      g.modelsDir,
		DataDir:        g.dataDir,
		ModelBackend:   g.backend,
		ONNXRuntimeLib: g.onnxLib,
	}
}

func (g *globalFlags) predictor(ctx context.Context) (*predict.Predictor, error) {
	logger, err := g.logger()
	if err != nil {
		return nil, err
	}
	return app.LoadPredictor(ctx, g.config(), logger)
}

func (g *globalFlags) artifacts(ctx context.Context) (*model.Artifacts, error) {
	load, err := app.ModelLoader(g.backend, g.modelsDir, g.onnxLib)
	if err != nil {
		return nil, err
	}
	return load(ctx)
}
