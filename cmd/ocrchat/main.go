package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chriskillpack/ocrchat"
	"github.com/chriskillpack/ocrchat/internal/config"
	"github.com/spf13/cobra"
)

var mainCMD = &cobra.Command{
	Use:          "ocrchat",
	Short:        "Extract text from images with a vision LLM",
	Long:         "A chat front end that sends uploaded images to a hosted vision model and shows the extracted text as markdown.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	pf := mainCMD.PersistentFlags()
	pf.String("config", "", "Path to a YAML config file")
	pf.String("backend", "", "Backend to use: groq, openai or llama")
	pf.String("base-url", "", "Base URL of an OpenAI compatible API, overrides the backend default")
	pf.String("model", "", "Vision model to send images to")
	pf.String("prompt", "", "Instruction sent with every image")
	pf.String("llama", "", "Address of running llama server, typically http://localhost:8080")
	pf.Int("seed", 0, "Random seed to llama, overrides the config")
	pf.String("history", "", "Path to the extraction history database, empty disables it")

	mainCMD.AddCommand(serveCMD, consoleCMD, extractCMD, historyCMD)
}

// loadConfig reads the config file and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	for flag, dst := range map[string]*string{
		"backend":  &cfg.Backend,
		"base-url": &cfg.BaseURL,
		"model":    &cfg.Model,
		"prompt":   &cfg.Prompt,
		"llama":    &cfg.LlamaServer,
		"history":  &cfg.HistoryDB,
	} {
		if flags.Changed(flag) {
			*dst, _ = flags.GetString(flag)
		}
	}
	if flags.Changed("seed") {
		cfg.LlamaSeed, _ = flags.GetInt("seed")
	}
	// --llama on its own is enough to pick the llama backend
	if flags.Changed("llama") && !flags.Changed("backend") {
		cfg.Backend = ocrchat.BackendLlama
	}

	return cfg, cfg.Validate()
}

// initApp builds the app from cfg. The returned DB is nil when the history
// is disabled, otherwise the caller closes it.
func initApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*ocrchat.App, *ocrchat.OCRChat, *ocrchat.DB, error) {
	if err := cfg.LoadAPIKey(); err != nil {
		return nil, nil, nil, err
	}

	oc, err := ocrchat.Init(ocrchat.InitOptions{
		Backend:     cfg.Backend,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Prompt:      cfg.Prompt,
		RateLimit:   cfg.RateLimit,
		LlamaServer: cfg.LlamaServer,
		LlamaSeed:   cfg.LlamaSeed,
		HttpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var db *ocrchat.DB
	if cfg.HistoryDB != "" {
		if db, err = ocrchat.NewDB(ctx, cfg.HistoryDB); err != nil {
			return nil, nil, nil, err
		}
	}

	app := ocrchat.NewApp(oc.Extractor, ocrchat.AppOptions{
		MaxUploadSize: cfg.MaxUploadSize(),
		UploadTimeout: cfg.UploadTimeout,
		History:       db,
		Logger:        logger,
	})
	return app, oc, db, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mainCMD.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
