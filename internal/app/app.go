// Package app wires configuration into the service graph shared by the HTTP
// server and the CLI.
package app

import (
	"database/sql"
	"fmt"

	"lumina/internal/config"
	"lumina/internal/db"
	"lumina/internal/services"
	"lumina/pkg/imagesearch"
)

type App struct {
	Config config.Config
	DB     *sql.DB

	Documents  *services.DocumentService
	PDF        *services.PDFService
	AI         *services.AIService
	Library    *services.LibraryService
	Settings   *services.SettingsService
	Ingestion  *services.IngestionService
	Sessions   *services.SessionService
	Flashcards *services.FlashcardService
	Worksheets *services.WorksheetService
	Images     imagesearch.ImageSearchService
}

func New(cfg config.Config) (*App, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	completer, err := services.NewCompleter(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEndpoint, cfg.MockAI)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create completer: %w", err)
	}

	a := &App{Config: cfg, DB: conn}
	a.Documents = services.NewDocumentService(conn, cfg.UploadDir)
	a.PDF = services.NewPDFService()
	a.AI = services.NewAIService(completer, cfg.GenerateAttempts, cfg.RetryDelay)
	a.Library = services.NewLibraryService(conn)
	a.Settings = services.NewSettingsService(conn, cfg.PexelsKey)
	a.Ingestion = services.NewIngestionService(a.Documents, a.PDF, a.AI, a.Library, a.Settings, cfg.PromptCharBudget, cfg.QuestionCount)
	a.Sessions = services.NewSessionService(conn, a.Library, cfg.SessionSize)
	a.Flashcards = services.NewFlashcardService(conn, a.Library)
	a.Worksheets = services.NewWorksheetService(a.Library, cfg.SessionSize)
	a.Images = imagesearch.NewImageSearchService(imagesearch.Config{
		APIKey:  cfg.PexelsKey,
		BaseURL: cfg.PexelsBaseURL,
	})
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
