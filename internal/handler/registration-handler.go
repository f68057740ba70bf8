package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
)

// startRegistration begins the sign-up flow for an unknown Telegram user.
func (h *Handler) startRegistration(ctx context.Context, b *bot.Bot, msg *models.Message) {
	state := &domain.UserState{Step: domain.StepRegisterRole}
	h.saveSession(ctx, msg.From.ID, state)

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "🧍 Yo'lovchi", CallbackData: "role_passenger"},
				{Text: "🚗 Haydovchi", CallbackData: "role_driver"},
			},
		},
	}

	h.sendHTML(ctx, b, msg.From.ID,
		"Assalomu alaykum! 👋 <b>Yo'lda</b> botiga xush kelibsiz.\n\n"+
			"Ro'yxatdan o'tish uchun kim sifatida foydalanishingizni tanlang:",
		keyboard)
}

func (h *Handler) handleRoleCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	role := domain.RolePassenger
	if cb.Data == "role_driver" {
		role = domain.RoleDriver
	}

	state, err := h.sessions.Get(ctx, cb.From.ID)
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		return
	}
	if state.Step != domain.StepRegisterRole {
		h.answerCallback(ctx, b, cb.ID, "", false)
		return
	}

	state.Role = role
	state.Step = domain.StepRegisterFirstName
	h.saveSession(ctx, cb.From.ID, state)

	h.answerCallback(ctx, b, cb.ID, "", false)
	h.sendHTML(ctx, b, cb.From.ID, "Ismingizni kiriting:", nil)
}

func (h *Handler) continueRegistration(ctx context.Context, b *bot.Bot, msg *models.Message, state *domain.UserState) {
	text := strings.TrimSpace(msg.Text)

	switch state.Step {
	case domain.StepRegisterFirstName:
		if text == "" {
			h.sendHTML(ctx, b, msg.From.ID, "Iltimos, ismingizni yozing:", nil)
			return
		}
		state.FirstName = text
		state.Step = domain.StepRegisterLastName
		h.saveSession(ctx, msg.From.ID, state)
		h.sendHTML(ctx, b, msg.From.ID, "Familiyangizni kiriting:", nil)

	case domain.StepRegisterLastName:
		if text == "" {
			h.sendHTML(ctx, b, msg.From.ID, "Iltimos, familiyangizni yozing:", nil)
			return
		}
		state.LastName = text
		state.Step = domain.StepRegisterPhone
		h.saveSession(ctx, msg.From.ID, state)
		h.sendHTML(ctx, b, msg.From.ID,
			"Telefon raqamingizni kiriting (masalan, +998901234567):", nil)

	case domain.StepRegisterPhone:
		phone, err := NormalizePhone(text)
		if err != nil {
			h.sendHTML(ctx, b, msg.From.ID,
				"❌ Raqam noto'g'ri. +998901234567 ko'rinishida yozing:", nil)
			return
		}
		h.finishRegistration(ctx, b, msg, state, phone)
	}
}

func (h *Handler) finishRegistration(ctx context.Context, b *bot.Bot, msg *models.Message, state *domain.UserState, phone string) {
	user, err := h.userRepo.CreateUser(ctx, &domain.CreateUserRequest{
		TelegramID:       msg.From.ID,
		TelegramUsername: msg.From.Username,
		FirstName:        state.FirstName,
		LastName:         state.LastName,
		PhoneNumber:      phone,
		Role:             state.Role,
	})
	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err), zap.Int64("telegram_id", msg.From.ID))
		h.sendHTML(ctx, b, msg.From.ID,
			"❌ Ro'yxatdan o'tishda xatolik yuz berdi. /start bilan qayta urinib ko'ring.", nil)
		return
	}

	h.clearSession(ctx, msg.From.ID)

	roleLabel := "yo'lovchi"
	if user.Role == domain.RoleDriver {
		roleLabel = "haydovchi"
	}
	h.sendMainMenu(ctx, b, msg.From.ID,
		"✅ Ro'yxatdan o'tdingiz, "+user.FirstName+"! Siz "+roleLabel+" sifatida qayd etildingiz.")
}
