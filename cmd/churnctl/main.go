// Command churnctl serves the feedback form and scores submissions from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"churnform/app"
	"churnform/feedback"
	"churnform/form"
	"churnform/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "churnctl",
	Short:         "Telecom churn feedback collector",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feedback form server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return app.Serve(ctx, configPath)
	},
}

var (
	predictFile   string
	predictDryRun bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score one submission read as JSON",
	Long: `Reads a JSON submission (same fields as POST /api/predict) from --file or stdin,
fills omitted fields with the form defaults, predicts churn and appends the row to
the feedback file unless --dry-run is set.`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the model's expected features and category codes",
	Args:  cobra.NoArgs,
	RunE:  runFeatures,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	predictCmd.Flags().StringVarP(&predictFile, "file", "f", "-", "JSON submission file, - for stdin")
	predictCmd.Flags().BoolVar(&predictDryRun, "dry-run", false, "predict without writing feedback")
	rootCmd.AddCommand(serveCmd, predictCmd, featuresCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildServices() (*app.Services, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, _, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	services, err := app.Build(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return services, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if predictFile != "-" {
		f, err := os.Open(predictFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	submission := form.Defaults()
	decoder := json.NewDecoder(in)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&submission); err != nil {
		return fmt.Errorf("decode submission: %w", err)
	}
	record, err := submission.Record()
	if err != nil {
		return err
	}

	services, err := buildServices()
	if err != nil {
		return err
	}
	defer services.Close()

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")

	if predictDryRun {
		prediction, err := services.Adapter.Predict(cmd.Context(), services.Encoder.Encode(record))
		if err != nil {
			return fmt.Errorf("prediction failed: %w", err)
		}
		return out.Encode(prediction)
	}

	result, err := services.Pipeline.Submit(cmd.Context(), record)
	if err != nil {
		if !errors.Is(err, feedback.ErrStoreWrite) {
			return fmt.Errorf("prediction failed: %w", err)
		}
		services.Logger.Warn("feedback not saved", zap.Error(err))
	}
	return out.Encode(result)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	services, err := buildServices()
	if err != nil {
		return err
	}
	defer services.Close()

	w := cmd.OutOrStdout()
	registry := services.Registry
	for i, name := range registry.ExpectedFeatures() {
		d, _ := registry.Descriptor(name)
		fmt.Fprintf(w, "%2d  %-28s %s\n", i, name, d.Kind)
		for code, label := range registry.Categories(name) {
			fmt.Fprintf(w, "      %3d  %s\n", code+1, label)
		}
	}
	return nil
}
