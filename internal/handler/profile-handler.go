package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
)

func (h *Handler) showProfile(ctx context.Context, b *bot.Bot, user *domain.User, chatID int64) {
	roleLabel := "🧍 Yo'lovchi"
	switchLabel := "🚗 Haydovchi bo'lish"
	if user.Role == domain.RoleDriver {
		roleLabel = "🚗 Haydovchi"
		switchLabel = "🧍 Yo'lovchi bo'lish"
	}

	text := fmt.Sprintf(
		"👤 <b>Profil</b>\n\n"+
			"<b>Ism:</b> %s\n"+
			"<b>Familiya:</b> %s\n"+
			"<b>Telefon:</b> %s\n"+
			"<b>Maqom:</b> %s",
		user.FirstName, user.LastName, user.PhoneNumber, roleLabel)

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✏️ Ism", CallbackData: "profile_edit_first"},
				{Text: "✏️ Familiya", CallbackData: "profile_edit_last"},
			},
			{
				{Text: "✏️ Telefon", CallbackData: "profile_edit_phone"},
				{Text: switchLabel, CallbackData: "profile_switch_role"},
			},
		},
	}
	h.sendHTML(ctx, b, chatID, text, keyboard)
}

func (h *Handler) handleProfileCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	user, err := h.userRepo.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Avval ro'yxatdan o'ting: /start", true)
		return
	}

	switch cb.Data {
	case "profile_edit_first":
		h.beginProfileEdit(ctx, b, cb, domain.StepEditFirstName, "Yangi ismingizni kiriting:")
	case "profile_edit_last":
		h.beginProfileEdit(ctx, b, cb, domain.StepEditLastName, "Yangi familiyangizni kiriting:")
	case "profile_edit_phone":
		h.beginProfileEdit(ctx, b, cb, domain.StepEditPhone, "Yangi telefon raqamingizni kiriting:")

	case "profile_switch_role":
		newRole := domain.RoleDriver
		if user.Role == domain.RoleDriver {
			newRole = domain.RolePassenger
		}
		if err := h.userRepo.SetRole(ctx, user.ID, newRole); err != nil {
			h.logger.Error("Failed to switch role", zap.Error(err), zap.String("user_id", user.ID))
			h.answerCallback(ctx, b, cb.ID, "Xatolik yuz berdi", true)
			return
		}
		h.answerCallback(ctx, b, cb.ID, "Maqom o'zgartirildi", false)
		user.Role = newRole
		h.showProfile(ctx, b, user, cb.From.ID)

	default:
		h.answerCallback(ctx, b, cb.ID, "", false)
	}
}

func (h *Handler) beginProfileEdit(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery, step, prompt string) {
	h.saveSession(ctx, cb.From.ID, &domain.UserState{Step: step})
	h.answerCallback(ctx, b, cb.ID, "", false)
	h.sendHTML(ctx, b, cb.From.ID, prompt, nil)
}

func (h *Handler) continueProfileEdit(ctx context.Context, b *bot.Bot, user *domain.User, msg *models.Message, state *domain.UserState) {
	text := strings.TrimSpace(msg.Text)
	firstName, lastName, phone := user.FirstName, user.LastName, user.PhoneNumber

	switch state.Step {
	case domain.StepEditFirstName:
		if text == "" {
			h.sendHTML(ctx, b, msg.From.ID, "Iltimos, ismingizni yozing:", nil)
			return
		}
		firstName = text

	case domain.StepEditLastName:
		if text == "" {
			h.sendHTML(ctx, b, msg.From.ID, "Iltimos, familiyangizni yozing:", nil)
			return
		}
		lastName = text

	case domain.StepEditPhone:
		normalized, err := NormalizePhone(text)
		if err != nil {
			h.sendHTML(ctx, b, msg.From.ID,
				"❌ Raqam noto'g'ri. +998901234567 ko'rinishida yozing:", nil)
			return
		}
		phone = normalized
	}

	if err := h.userRepo.UpdateProfile(ctx, user.ID, firstName, lastName, phone); err != nil {
		h.logger.Error("Failed to update profile", zap.Error(err), zap.String("user_id", user.ID))
		h.sendHTML(ctx, b, msg.From.ID, "❌ Profilni yangilashda xatolik yuz berdi.", nil)
		return
	}

	h.clearSession(ctx, msg.From.ID)

	user.FirstName, user.LastName, user.PhoneNumber = firstName, lastName, phone
	h.sendHTML(ctx, b, msg.From.ID, "✅ Profil yangilandi.", nil)
	h.showProfile(ctx, b, user, msg.From.ID)
}
