package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"mindscribe.app/journal-assistant/internal/auth"
	"mindscribe.app/journal-assistant/internal/core"
	"mindscribe.app/journal-assistant/internal/fault"
	"mindscribe.app/journal-assistant/internal/store"
)

type APIHandler struct {
	pipeline   *core.Pipeline
	chat       *core.ChatService
	normalizer *core.Normalizer
	store      *store.FileStore
	bank       *store.PromptBank
}

func NewAPIHandler(pipeline *core.Pipeline, chat *core.ChatService, normalizer *core.Normalizer, st *store.FileStore, bank *store.PromptBank) *APIHandler {
	return &APIHandler{
		pipeline:   pipeline,
		chat:       chat,
		normalizer: normalizer,
		store:      st,
		bank:       bank,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses so the conversation
// layer can distinguish retryable transport failures from terminal ones.
func writeError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusInternalServerError
	kind := fault.KindOf(err)
	switch kind {
	case fault.NotFound:
		status = http.StatusNotFound
	case fault.MalformedResponse, fault.SafetyBlocked:
		status = http.StatusUnprocessableEntity
	case fault.Transport:
		status = http.StatusBadGateway
	}
	msg := fallback
	if kind != 0 {
		msg = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg, Kind: kind.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		_, ok, err := h.store.GetProfile(userID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", userID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const userIDKey contextKey = "userID"

var timeNow = time.Now

func requestUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type profileResponse struct {
	UserID           string `json:"user_id"`
	DisplayName      string `json:"display_name,omitempty"`
	DailyPromptOptIn bool   `json:"daily_prompt_opt_in"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	if _, exists, err := h.store.GetProfile(req.UserID); err != nil {
		writeError(w, err, "Failed to create user")
		return
	} else if exists {
		http.Error(w, "User already exists", http.StatusConflict)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	err = h.store.UpdateProfile(req.UserID, func(p *store.UserProfile) error {
		p.PasswordHash = hashedPassword
		p.CreatedAt = timeNow()
		return nil
	})
	if err != nil {
		log.Printf("Error creating user %s: %v", req.UserID, err)
		writeError(w, err, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, profileResponse{UserID: req.UserID})
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	profile, ok, err := h.store.GetProfile(req.UserID)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.UserID, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if !ok || !auth.CheckPasswordHash(req.Password, profile.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type SubmitEntryRequest struct {
	Modality string `json:"modality"` // TEXT, VOICE or IMAGE
	Text     string `json:"text,omitempty"`
	Payload  []byte `json:"payload,omitempty"` // base64 in JSON
	MIMEType string `json:"mime_type,omitempty"`
	Language string `json:"language,omitempty"`
}

func (h *APIHandler) SubmitEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req SubmitEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	in, err := inputFromRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.pipeline.SubmitEntry(r.Context(), userID, in)
	if err != nil {
		log.Printf("Error submitting entry for user %s: %v", userID, err)
		writeError(w, err, "Failed to submit entry")
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (h *APIHandler) RunAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	entryID := chi.URLParam(r, "entryID")

	entry, err := h.store.GetEntry(entryID)
	if err != nil {
		writeError(w, err, "Failed to load entry")
		return
	}
	if entry.UserID != userID {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}

	result, err := h.pipeline.RunAnalysis(r.Context(), entryID)
	if err != nil {
		log.Printf("Error analyzing entry %s: %v", entryID, err)
		writeError(w, err, "Failed to analyze entry")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	entries, err := h.pipeline.Entries(userID)
	if err != nil {
		log.Printf("Error listing entries for user %s: %v", userID, err)
		writeError(w, err, "Failed to list entries")
		return
	}
	if entries == nil {
		entries = []store.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) UsageHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	usage, err := h.pipeline.GetUsage(userID)
	if err != nil {
		log.Printf("Error reporting usage for user %s: %v", userID, err)
		writeError(w, err, "Failed to report usage")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

type UpdateProfileRequest struct {
	DisplayName      *string `json:"display_name,omitempty"`
	DailyPromptOptIn *bool   `json:"daily_prompt_opt_in,omitempty"`
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || len(name) > 50 {
			http.Error(w, "Display name must be 1-50 characters", http.StatusBadRequest)
			return
		}
		*req.DisplayName = name
	}

	var updated store.UserProfile
	err := h.store.UpdateProfile(userID, func(p *store.UserProfile) error {
		if req.DisplayName != nil {
			p.DisplayName = *req.DisplayName
		}
		if req.DailyPromptOptIn != nil {
			p.DailyPromptOptIn = *req.DailyPromptOptIn
		}
		updated = *p
		return nil
	})
	if err != nil {
		log.Printf("Error updating profile for user %s: %v", userID, err)
		writeError(w, err, "Failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		UserID:           updated.UserID,
		DisplayName:      updated.DisplayName,
		DailyPromptOptIn: updated.DailyPromptOptIn,
	})
}

func (h *APIHandler) DailyPromptHandler(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.bank.RandomPrompt()
	if err != nil {
		log.Printf("Error picking daily prompt: %v", err)
		http.Error(w, "Failed to pick a prompt", http.StatusInternalServerError)
		return
	}
	if prompt == nil {
		http.Error(w, "No prompts available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

type FeedbackRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "Feedback text is required", http.StatusBadRequest)
		return
	}

	fb, err := h.bank.AddFeedback(userID, req.Text)
	if err != nil {
		log.Printf("Error saving feedback from user %s: %v", userID, err)
		http.Error(w, "Failed to save feedback", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

type ChatRequest struct {
	Message string `json:"message"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	reply, err := h.chat.Respond(r.Context(), userID, req.Message)
	if err != nil {
		log.Printf("Error generating chat response for user %s: %v", userID, err)
		writeError(w, err, "Failed to generate response")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// ExtractTextHandler is the OCR mode: run image normalization and hand the
// text straight back without journaling it.
func (h *APIHandler) ExtractTextHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req SubmitEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Modality = string(store.ModalityImage)
	in, err := inputFromRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	text, err := h.normalizer.Normalize(r.Context(), userID, in)
	if err != nil {
		log.Printf("Error extracting text for user %s: %v", userID, err)
		writeError(w, err, "Failed to extract text")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"text":       text,
		"text_found": text != "",
	})
}

func inputFromRequest(req SubmitEntryRequest) (core.Input, error) {
	modality := store.Modality(strings.ToUpper(strings.TrimSpace(req.Modality)))
	switch modality {
	case store.ModalityText:
		if strings.TrimSpace(req.Text) == "" {
			return core.Input{}, errBadInput("text is required for TEXT modality")
		}
	case store.ModalityVoice, store.ModalityImage:
		if len(req.Payload) == 0 || req.MIMEType == "" {
			return core.Input{}, errBadInput("payload and mime_type are required for " + string(modality) + " modality")
		}
	default:
		return core.Input{}, errBadInput("modality must be TEXT, VOICE or IMAGE")
	}

	return core.Input{
		Modality: modality,
		Text:     req.Text,
		Payload:  req.Payload,
		MIMEType: req.MIMEType,
		Language: req.Language,
	}, nil
}

type errBadInput string

func (e errBadInput) Error() string { return string(e) }
