package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/store"
	"github.com/go-chi/chi/v5"
)

type createMessageRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type messageResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	Timestamp string `json:"timestamp"`
}

// handleCreateMessage accepts a contact form submission. A store
// failure is downgraded to logging so the visitor never loses their
// message to a database outage.
func (s *server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	if req.Name == "" || req.Email == "" || req.Subject == "" ||
		req.Message == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"all fields are required"})

		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid email address"})

		return
	}

	msg := &store.Message{
		Name:      req.Name,
		Email:     req.Email,
		Subject:   req.Subject,
		Body:      req.Message,
		IPAddress: extractIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}

	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		s.log.WithError(err).
			WithField("from", req.Name).
			WithField("email", req.Email).
			WithField("subject", req.Subject).
			Warn("Store unavailable, message logged only")

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Message sent successfully",
			"id":      strconv.FormatInt(time.Now().UnixMilli(), 10),
		})

		return
	}

	s.log.WithField("from", msg.Name).
		WithField("subject", msg.Subject).
		Info("New message received")

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Message sent successfully",
		"id":      strconv.FormatUint(uint64(msg.ID), 10),
	})
}

// handleListMessages returns the full inbox with counts.
func (s *server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListMessages(r.Context())
	if err != nil {
		s.serverError(w, "failed to fetch messages", err)

		return
	}

	unread, err := s.store.CountUnreadMessages(r.Context())
	if err != nil {
		s.serverError(w, "failed to count unread messages", err)

		return
	}

	out := make([]messageResponse, 0, len(messages))

	for _, msg := range messages {
		out = append(out, messageResponse{
			ID:        strconv.FormatUint(uint64(msg.ID), 10),
			Name:      msg.Name,
			Email:     msg.Email,
			Subject:   msg.Subject,
			Message:   msg.Body,
			Read:      msg.Read,
			Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages":    out,
		"totalCount":  len(out),
		"unreadCount": unread,
	})
}

// messageID parses the {id} route parameter.
func messageID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, err
	}

	return uint(id), nil
}

func (s *server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid message id"})

		return
	}

	if err := s.store.MarkMessageRead(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"message not found"})

			return
		}

		s.serverError(w, "failed to mark message read", err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid message id"})

		return
	}

	if err := s.store.DeleteMessage(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"message not found"})

			return
		}

		s.serverError(w, "failed to delete message", err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
