package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/study"
	"lumina/pkg/imagesearch"
)

const (
	maxMultipartMemory = 8 << 20  // 8 MB
	maxUploadBytes     = 32 << 20 // 32 MB
)

// Deps are the services the API is built on.
type Deps struct {
	Library    *services.LibraryService
	Documents  *services.DocumentService
	Ingestion  *services.IngestionService
	Sessions   *services.SessionService
	Flashcards *services.FlashcardService
	Worksheets *services.WorksheetService
	Settings   *services.SettingsService
	Images     imagesearch.ImageSearchService

	// BaseContext parents background library builds. Defaults to Background.
	BaseContext context.Context
}

type Server struct {
	router chi.Router
	deps   Deps
	jobs   *JobManager
	now    func() time.Time
}

func NewServer(deps Deps) *Server {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		jobs:   NewJobManager(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.Routes(s.router)
	return s
}

// Handler serves the API on its own, without middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Routes registers the API under /api on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})

		r.Get("/health", s.handleHealth)

		r.Route("/library", func(r chi.Router) {
			r.Get("/", s.handleLatestPool)
			r.Post("/jobs", s.handleCreateBuildJob)
			r.Get("/jobs/{jobID}", s.handleJobStatus)
			r.Get("/pools", s.handleListPools)
			r.Get("/pools/{poolID}", s.handleGetPool)
			r.Delete("/pools/{poolID}", s.handleDeletePool)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/answer", s.handleAnswer)
				r.Post("/next", s.handleNext)
				r.Get("/summary", s.handleSummary)
				r.Post("/retry", s.handleRetry)
			})
		})

		r.Route("/flashcards", func(r chi.Router) {
			r.Get("/next", s.handleNextCard)
			r.Get("/stats", s.handleCardStats)
			r.Post("/{cardID}/review", s.handleReviewCard)
		})

		r.Get("/worksheets", s.handleWorksheet)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleSaveSettings)
		r.Delete("/settings", s.handleSignOut)

		r.Get("/images", s.handleImageSearch)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Library

func (s *Server) handleCreateBuildJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	topic := strings.TrimSpace(r.FormValue("topic"))
	if topic == "" {
		s.writeServiceError(w, r, services.ErrTopicRequired)
		return
	}
	age, err := formInt(r, "age")
	if err != nil {
		writeError(w, http.StatusBadRequest, "age must be a number")
		return
	}
	count, err := formInt(r, "count")
	if err != nil {
		writeError(w, http.StatusBadRequest, "count must be a number")
		return
	}
	if age == 0 {
		settings, err := s.deps.Settings.Load(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		age = settings.Age
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeServiceError(w, r, services.ErrFileRequired)
		return
	}
	defer file.Close()

	// The upload is copied before responding; only generation runs in the background.
	doc, err := s.deps.Documents.Create(r.Context(), header.Filename, file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	jobID, snapshot := s.jobs.CreateJob(topic, header.Filename)
	go s.runBuildJob(jobID, services.BuildRequest{
		Topic:    topic,
		Age:      age,
		Count:    count,
		Document: doc,
	})

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) runBuildJob(jobID string, req services.BuildRequest) {
	s.jobs.MarkProcessing(jobID)
	progress := func(step, message string, current, total int) {
		s.jobs.UpdateProgress(jobID, step, message, current, total)
	}
	pool, err := s.deps.Ingestion.BuildLibraryWithProgress(s.deps.BaseContext, req, progress)
	if err != nil {
		log.Printf("library build %s failed: %v", jobID, err)
		// Nothing references the upload once the build fails.
		if delErr := s.deps.Documents.Delete(s.deps.BaseContext, req.Document.ID); delErr != nil {
			log.Printf("library build %s: discard upload: %v", jobID, delErr)
		}
		s.jobs.MarkFailed(jobID, err.Error())
		return
	}
	log.Printf("library build %s: %d questions on %q", jobID, len(pool.Questions), pool.Topic)
	s.jobs.MarkCompleted(jobID, pool.ID, len(pool.Questions))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleLatestPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.deps.Library.LatestPool(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a number")
		return
	}
	pools, err := s.deps.Library.ListPools(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poolListView{Pools: pools})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.deps.Library.GetPool(r.Context(), chi.URLParam(r, "poolID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.DeletePool(r.Context(), chi.URLParam(r, "poolID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sessions

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PoolID string      `json:"poolId"`
		Mode   models.Mode `json:"mode"`
		Size   int         `json:"size"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModeQuiz
	}
	sess, err := s.deps.Sessions.Start(r.Context(), req.PoolID, req.Mode, req.Size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(sess, s.now()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess, s.now()))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected *string `json:"selected"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Selected == nil {
		writeError(w, http.StatusBadRequest, "selected is required")
		return
	}
	sess, res, err := s.deps.Sessions.Answer(r.Context(), chi.URLParam(r, "sessionID"), *req.Selected)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q := sess.Questions[sess.Index]
	writeJSON(w, http.StatusOK, answerView{
		Correct:     res.Correct,
		Selected:    res.Selected,
		Answer:      q.Answer,
		Explanation: q.Explanation,
		Page:        q.Page,
		Session:     newSessionView(sess, s.now()),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Next(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess, s.now()))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Sessions.Summary(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Retry(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(sess, s.now()))
}

// Flashcards

func (s *Server) handleNextCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.deps.Flashcards.NextCard(r.Context(), r.URL.Query().Get("poolId"))
	if errors.Is(err, services.ErrNoDueCards) {
		writeJSON(w, http.StatusOK, map[string]any{
			"card":    nil,
			"message": "No cards due. Come back later!",
		})
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card": newCardView(card)})
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.ParseInt(chi.URLParam(r, "cardID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}
	var req struct {
		Rating json.RawMessage `json:"rating"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	raw := strings.Trim(string(req.Rating), `"`)
	rating, err := services.ParseRating(raw)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	card, review, err := s.deps.Flashcards.ReviewCard(r.Context(), cardID, rating)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"card":          newCardView(card),
		"rating":        services.FormatRating(rating),
		"scheduledDays": review.ScheduledDays,
	})
}

func (s *Server) handleCardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Flashcards.Stats(r.Context(), r.URL.Query().Get("poolId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Worksheets

func (s *Server) handleWorksheet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, err := queryInt(r, "size")
	if err != nil {
		writeError(w, http.StatusBadRequest, "size must be a number")
		return
	}
	withAnswers, _ := strconv.ParseBool(q.Get("answers"))

	ws, err := s.deps.Worksheets.Generate(r.Context(), q.Get("poolId"), size, withAnswers)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	switch strings.ToLower(q.Get("format")) {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(ws.Markdown))
	case "html":
		html, err := s.deps.Worksheets.RenderHTML(ws.Markdown)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(html))
	case "json":
		writeJSON(w, http.StatusOK, ws)
	default:
		writeError(w, http.StatusBadRequest, "format must be markdown, html or json")
	}
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Load(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var update services.SettingsUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	settings, err := s.deps.Settings.Save(r.Context(), update)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Settings.SignOut(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Images

func (s *Server) handleImageSearch(w http.ResponseWriter, r *http.Request) {
	key, err := s.deps.Settings.EffectivePexelsKey(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.deps.Images.SearchWithOptions(r.Context(), r.URL.Query().Get("query"), &imagesearch.SearchOptions{APIKey: key})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Photos[0])
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var searchErr *imagesearch.SearchError
	if errors.As(err, &searchErr) {
		switch searchErr.Code {
		case "missing_query", "missing_api_key":
			return http.StatusBadRequest
		case "no_results":
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, services.ErrTopicRequired),
		errors.Is(err, services.ErrFileRequired),
		errors.Is(err, services.ErrUnsupportedFile),
		errors.Is(err, services.ErrInvalidMode),
		errors.Is(err, services.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPoolNotFound),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrCardNotFound),
		errors.Is(err, services.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrLibraryEmpty),
		errors.Is(err, study.ErrNoMistakes),
		errors.Is(err, study.ErrAlreadyAnswered),
		errors.Is(err, study.ErrSessionFinished):
		return http.StatusConflict
	case errors.Is(err, services.ErrAIUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body: "+err.Error())
		return false
	}
	return true
}

func formInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
