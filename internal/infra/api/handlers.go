package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/infra/logging"
	"telegram-miniapp/internal/infra/metrics"
	red "telegram-miniapp/internal/infra/redis"
	"telegram-miniapp/internal/usecase"
)

type loginRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type notifyRequest struct {
	UserID  string `json:"user_id" validate:"required,max=64"`
	Message string `json:"message" validate:"required,max=4096"`
}

type broadcastRequest struct {
	Subject string `json:"subject" validate:"max=256"`
	Body    string `json:"body" validate:"required,max=4096"`
}

type addressResponse struct {
	UserID  string `json:"user_id"`
	Address string `json:"address"`
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	var req model.ServiceRequest
	if !s.decode(w, r, &req) {
		return
	}

	if s.opts.InitDataToken != "" {
		tgID, err := verifyInitData(initDataFromRequest(r), s.opts.InitDataToken, s.opts.InitDataMaxAge, time.Now())
		if err != nil {
			logging.With(r.Context(), s.log).Info().Err(err).Msg("rejected service request without valid init data")
			writeServiceError(w, http.StatusUnauthorized, "Please open this page from the Telegram bot.")
			return
		}
		if tgID != req.User.ID {
			logging.With(r.Context(), s.log).Warn().Int64("tg_id", tgID).Int64("claimed_id", req.User.ID).Msg("service request for another user")
			writeServiceError(w, http.StatusForbidden, "User does not match the Telegram session.")
			return
		}
	}

	if s.limiter != nil && s.opts.RateLimit > 0 {
		key := red.ServiceRequestKey(req.User.UserID(), string(req.Service))
		allowed, err := s.limiter.Allow(r.Context(), key, s.opts.RateLimit, s.opts.RateLimitWindow)
		if err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !allowed {
			metrics.IncRateLimitTriggered()
			writeServiceError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
	}

	ctx := logging.WithUserID(r.Context(), req.User.UserID())
	resp, err := s.services.Handle(ctx, &req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, domain.ErrAlreadySubscribed):
		writeServiceError(w, http.StatusConflict, "You're already subscribed!")
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnknownService):
		writeServiceError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeServiceError(w, http.StatusServiceUnavailable, "This service is not available right now.")
	default:
		logging.With(ctx, s.log).Error().Err(err).Str("service", string(req.Service)).Msg("service request failed")
		writeServiceError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.opts.APIKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.opts.APIKey)) != 1 {
		metrics.IncAdminCommand("login", "unauthorized")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to mint admin session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.IncAdminCommand("login", "authorized")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.notifier.Notify(r.Context(), req.UserID, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.IncAdminCommand("notify", "authorized")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !s.decode(w, r, &req) {
		return
	}
	queued, err := s.broadcast.BroadcastNewsletter(r.Context(), req.Subject, req.Body)
	switch {
	case err == nil:
		metrics.IncAdminCommand("broadcast", "authorized")
		writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
	case errors.Is(err, usecase.ErrBroadcastInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("broadcast failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleLookupAddress(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	addr, found, err := s.directory.LookupAddress(r.Context(), userID)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("address lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	case !found:
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		writeJSON(w, http.StatusOK, addressResponse{UserID: userID, Address: addr})
	}
}

func (s *Server) handleEvictAddress(w http.ResponseWriter, r *http.Request) {
	err := s.directory.EvictAddress(r.Context(), chi.URLParam(r, "userID"))
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("address eviction failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeServiceError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		writeServiceError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func writeServiceError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ServiceResponse{Status: model.StatusError, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
