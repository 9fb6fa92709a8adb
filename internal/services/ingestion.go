package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lumina/internal/models"
)

var (
	ErrTopicRequired = errors.New("topic is required")
	ErrFileRequired  = errors.New("a pdf file is required")
)

// ProgressCallback is called while a library is being built to report progress
type ProgressCallback func(step, message string, current, total int)

// PageExtractor reads the text layer of a stored document.
type PageExtractor interface {
	ExtractPages(path string) ([]PDFPage, error)
}

// BuildRequest describes one library build.
type BuildRequest struct {
	Topic    string
	Age      int
	Count    int
	Document *models.Document
}

// IngestionService coordinates PDF parsing, question generation, and persistence.
type IngestionService struct {
	documents    *DocumentService
	pages        PageExtractor
	ai           *AIService
	library      *LibraryService
	settings     *SettingsService
	promptBudget int
	defaultCount int
}

func NewIngestionService(
	documents *DocumentService,
	pages PageExtractor,
	ai *AIService,
	library *LibraryService,
	settings *SettingsService,
	promptBudget int,
	defaultCount int,
) *IngestionService {
	return &IngestionService{
		documents:    documents,
		pages:        pages,
		ai:           ai,
		library:      library,
		settings:     settings,
		promptBudget: promptBudget,
		defaultCount: defaultCount,
	}
}

func (s *IngestionService) BuildLibrary(ctx context.Context, req BuildRequest) (*models.Pool, error) {
	return s.BuildLibraryWithProgress(ctx, req, nil)
}

// BuildLibraryWithProgress turns an uploaded document into a question pool
// and makes it the last-built set.
func (s *IngestionService) BuildLibraryWithProgress(ctx context.Context, req BuildRequest, progress ProgressCallback) (*models.Pool, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	if req.Document == nil {
		return nil, ErrFileRequired
	}
	if s.ai == nil {
		return nil, ErrAIUnavailable
	}
	count := req.Count
	if count <= 0 {
		count = s.defaultCount
	}
	doc := req.Document

	if progress != nil {
		progress("extract", "Reading "+doc.OriginalName, 5, 100)
	}
	pages, err := s.pages.ExtractPages(doc.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", doc.OriginalName, err)
	}
	pageCount := 0
	for _, p := range pages {
		pageCount = max(pageCount, p.Number)
	}
	if err := s.documents.UpdatePageCount(ctx, doc.ID, pageCount); err != nil {
		return nil, err
	}
	if progress != nil {
		progress("extract", fmt.Sprintf("Read %d pages with text", len(pages)), 25, 100)
	}

	zone := ZoneForAge(req.Age)
	questions, err := s.ai.GenerateQuestionsWithProgress(ctx, QuestionPrompt{
		Topic:  topic,
		Zone:   zone,
		Count:  count,
		Pages:  pages,
		Budget: s.promptBudget,
	}, progress)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].Source == "" {
			questions[i].Source = doc.OriginalName
		}
	}

	if progress != nil {
		progress("save", fmt.Sprintf("Saving %d questions", len(questions)), 90, 100)
	}
	pool := &models.Pool{
		Topic:      topic,
		Zone:       zone,
		DocumentID: sql.NullInt64{Int64: doc.ID, Valid: doc.ID > 0},
		Questions:  questions,
	}
	if err := s.library.CreatePool(ctx, pool); err != nil {
		return nil, err
	}
	if s.settings != nil {
		if err := s.settings.SetTopic(ctx, topic); err != nil {
			return nil, err
		}
	}

	if progress != nil {
		progress("complete", "Library ready", 100, 100)
	}
	return pool, nil
}
