package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aitrends/backend/internal/models"
	"github.com/aitrends/backend/internal/service"
	"github.com/aitrends/backend/internal/storage"
)

type Server struct {
	addr        string
	username    string
	password    string
	log         *slog.Logger
	users       *service.UserService
	generations *service.GenerationService
	payments    *service.PaymentService
	templates   *service.TemplateService
	uploader    *storage.Uploader
	router      *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, users *service.UserService, generations *service.GenerationService, payments *service.PaymentService, templates *service.TemplateService, uploader *storage.Uploader) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:        addr,
		username:    username,
		password:    password,
		log:         log,
		users:       users,
		generations: generations,
		payments:    payments,
		templates:   templates,
		uploader:    uploader,
		router:      r,
	}

	r.Get("/health", s.handleHealth)
	r.Post("/webhook/yookassa", s.handleYooKassaWebhook)
	r.Get("/models", s.handleListModels)
	r.Get("/plans", s.handleListPlans)
	r.Get("/templates", s.handleListTemplates)
	r.Get("/templates/{id}", s.handleGetTemplate)

	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Route("/admin", func(r chi.Router) {
			r.Post("/templates", s.handleCreateTemplate)
			r.Put("/templates/{id}", s.handleUpdateTemplate)
			r.Delete("/templates/{id}", s.handleDeleteTemplate)
			r.Post("/templates/upload/preview", s.handleUploadPreview)
			r.Post("/users/{tgid}/ban", s.handleBanUser)
			r.Post("/users/{tgid}/balance", s.handleAdjustBalance)
			r.Get("/users/{tgid}", s.handleGetUser)
			r.Get("/users/{tgid}/generations", s.handleUserGenerations)
			r.Get("/users/{tgid}/payments", s.handleUserPayments)
		})
	})

	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleYooKassaWebhook is the public endpoint for payment status updates.
// The HMAC signature is checked before the body is acted on.
func (s *Server) handleYooKassaWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	if !s.payments.VerifySignature(body, r.Header.Get("Authorization"), r.Header.Get("Content-Yoomoney-Signature")) {
		s.log.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	if err := s.payments.HandleWebhook(r.Context(), body); err != nil {
		s.log.Error("yookassa webhook", "err", err)
		http.Error(w, "webhook error", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, service.Models())
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, service.Plans())
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tpl)
}

type templateRequest struct {
	Title           string                   `json:"title"`
	Description     string                   `json:"description"`
	Badge           *string                  `json:"badge"`
	IsNew           bool                     `json:"is_new"`
	IsPopular       bool                     `json:"is_popular"`
	DefaultPrompt   *string                  `json:"default_prompt"`
	PreviewImageURL *string                  `json:"preview_image_url"`
	Examples        []models.TemplateExample `json:"examples"`
}

func (req templateRequest) toModel(id string) *models.Template {
	return &models.Template{
		ID:              id,
		Title:           req.Title,
		Description:     req.Description,
		Badge:           req.Badge,
		IsNew:           req.IsNew,
		IsPopular:       req.IsPopular,
		DefaultPrompt:   req.DefaultPrompt,
		PreviewImageURL: req.PreviewImageURL,
		Examples:        req.Examples,
	}
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tpl, err := s.templates.Create(r.Context(), req.toModel(""))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tpl, err := s.templates.Update(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadPreview stores a preview image and returns its public URL.
// Disabled when object storage is not configured.
func (s *Server) handleUploadPreview(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil {
		http.Error(w, "object storage is not configured", http.StatusServiceUnavailable)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	url, err := s.uploader.Upload(r.Context(), data, r.Header.Get("Content-Type"))
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

type banRequest struct {
	Banned bool `json:"banned"`
}

func (s *Server) handleBanUser(w http.ResponseWriter, r *http.Request) {
	tgid, err := parseTGID(chi.URLParam(r, "tgid"))
	if err != nil {
		http.Error(w, "invalid tgid", http.StatusBadRequest)
		return
	}
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.users.SetBanned(r.Context(), tgid, req.Banned); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type balanceRequest struct {
	Delta float64 `json:"delta"`
}

func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	tgid, err := parseTGID(chi.URLParam(r, "tgid"))
	if err != nil {
		http.Error(w, "invalid tgid", http.StatusBadRequest)
		return
	}
	var req balanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := s.users.AdjustBalance(r.Context(), tgid, req.Delta)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, models.ErrInsufficientFunds):
			http.Error(w, "balance cannot go negative", http.StatusConflict)
		default:
			s.internalError(w, err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	tgid, err := parseTGID(chi.URLParam(r, "tgid"))
	if err != nil {
		http.Error(w, "invalid tgid", http.StatusBadRequest)
		return
	}
	user, err := s.users.Get(r.Context(), tgid)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserGenerations(w http.ResponseWriter, r *http.Request) {
	tgid, err := parseTGID(chi.URLParam(r, "tgid"))
	if err != nil {
		http.Error(w, "invalid tgid", http.StatusBadRequest)
		return
	}
	generations, err := s.generations.History(r.Context(), tgid, parseLimit(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, generations)
}

func (s *Server) handleUserPayments(w http.ResponseWriter, r *http.Request) {
	tgid, err := parseTGID(chi.URLParam(r, "tgid"))
	if err != nil {
		http.Error(w, "invalid tgid", http.StatusBadRequest)
		return
	}
	payments, err := s.payments.History(r.Context(), tgid, parseLimit(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payments)
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="aitrends"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("http handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseTGID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func parseLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	limit, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return limit
}
