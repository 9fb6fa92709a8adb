// Package main is the entry point for the lumina CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lumina/internal/app"
	"lumina/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the lumina CLI.
var rootCmd = &cobra.Command{
	Use:   "lumina",
	Short: "Build question libraries from study notes and practise them",
	Long: `lumina turns a PDF of study notes and a topic into a library of
multiple-choice questions, then lets you practise them as a quiz, as
spaced-repetition flashcards, or as a printable worksheet.

The same database is shared with the lumina web server.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./lumina.yaml or ~/.config/lumina/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DATABASE_PATH)")
	rootCmd.PersistentFlags().Bool("mock-ai", false, "use canned questions instead of a language model")
	_ = viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("mock_ai", rootCmd.PersistentFlags().Lookup("mock-ai"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("lumina")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "lumina"))
		}
	}

	viper.SetEnvPrefix("LUMINA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and LUMINA_* variables over the
// environment defaults shared with the server.
func loadConfig() config.Config {
	cfg := config.Load()
	if v := viper.GetString("database"); v != "" {
		cfg.Database = v
	}
	if v := viper.GetString("upload_dir"); v != "" {
		cfg.UploadDir = v
	}
	if v := viper.GetString("openai_model"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := viper.GetString("openai_endpoint"); v != "" {
		cfg.OpenAIEndpoint = v
	}
	if v := viper.GetString("pexels_base_url"); v != "" {
		cfg.PexelsBaseURL = v
	}
	if viper.GetBool("mock_ai") {
		cfg.MockAI = true
	}
	if n := viper.GetInt("question_count"); n > 0 {
		cfg.QuestionCount = n
	}
	if n := viper.GetInt("session_size"); n > 0 {
		cfg.SessionSize = n
	}
	return cfg
}

func openApp() (*app.App, error) {
	cfg := loadConfig()
	cfg.EnsureDirs()
	return app.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
