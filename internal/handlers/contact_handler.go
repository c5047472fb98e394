package handlers

import (
	"net/http"
	"strings"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

type ContactHandler struct {
	ContactStore store.ContactStore
	Logger       zerolog.Logger
}

func NewContactHandler(contactStore store.ContactStore, logger zerolog.Logger) *ContactHandler {
	return &ContactHandler{
		ContactStore: contactStore,
		Logger:       logger.With().Str("component", "contact").Logger(),
	}
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (ch *ContactHandler) HandlerContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Message: req.Message,
	}
	if err := ch.ContactStore.SaveContactMessage(r.Context(), msg); err != nil {
		writeError(w, ch.Logger, err, "Message not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"status": "success", "message": "Message received. We'll get back to you soon."})
}

type newsletterRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (ch *ContactHandler) HandlerSubscribeNewsletter(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := ch.ContactStore.SubscribeNewsletter(r.Context(), req.Email); err != nil {
		writeError(w, ch.Logger, err, "Subscriber not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"status": "success", "message": "Subscribed to the newsletter"})
}
