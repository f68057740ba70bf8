package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
	"yolda/internal/repository"
)

const historyPageSize = 3

// showOrderHistory renders one page of the user's orders, newest first.
func (h *Handler) showOrderHistory(ctx context.Context, b *bot.Bot, user *domain.User, chatID int64, page int) {
	if page < 0 {
		page = 0
	}

	orders, total, err := h.orderRepo.ListUserOrders(ctx, user.ID, historyPageSize, page*historyPageSize)
	if err != nil {
		h.logger.Error("Failed to list order history", zap.Error(err), zap.String("user_id", user.ID))
		h.sendHTML(ctx, b, chatID, "❌ Buyurtmalar tarixini olishda xatolik.", nil)
		return
	}

	if total == 0 {
		h.sendHTML(ctx, b, chatID, "📭 Sizda hali buyurtmalar yo'q.", nil)
		return
	}

	pages := int((total + historyPageSize - 1) / historyPageSize)
	if page >= pages {
		page = pages - 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>Mening buyurtmalarim</b> (%d/%d sahifa)\n", page+1, pages)
	for _, o := range orders {
		sb.WriteString("\n")
		sb.WriteString(renderHistoryLine(o))
	}

	var nav []models.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, models.InlineKeyboardButton{
			Text: "⬅️ Oldingi", CallbackData: fmt.Sprintf("history_page_%d", page-1),
		})
	}
	if page+1 < pages {
		nav = append(nav, models.InlineKeyboardButton{
			Text: "Keyingi ➡️", CallbackData: fmt.Sprintf("history_page_%d", page+1),
		})
	}

	var keyboard *models.InlineKeyboardMarkup
	if len(nav) > 0 {
		keyboard = &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{nav}}
	}

	if keyboard != nil {
		h.sendHTML(ctx, b, chatID, sb.String(), keyboard)
	} else {
		h.sendHTML(ctx, b, chatID, sb.String(), nil)
	}
}

func (h *Handler) handleHistoryCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	page, ok := parseCallbackID(cb.Data, "history_page_")
	if !ok {
		h.answerCallback(ctx, b, cb.ID, "", false)
		return
	}

	user, err := h.userRepo.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			h.answerCallback(ctx, b, cb.ID, "Avval ro'yxatdan o'ting: /start", true)
			return
		}
		h.logger.Error("Failed to load user", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		return
	}

	h.answerCallback(ctx, b, cb.ID, "", false)
	h.showOrderHistory(ctx, b, user, cb.From.ID, int(page))
}

func renderHistoryLine(o *domain.Order) string {
	kind := "🚖"
	if o.Kind == domain.KindDelivery {
		kind = "📦"
	}

	state := domain.StateInitiated
	if o.Status != nil {
		state = o.Status.State
	}

	return fmt.Sprintf("%s <b>№%d</b> %s, %s ➜ %s, %s\n%s %s · %s",
		kind, o.ID,
		o.FromRegion, o.FromDistrict, o.ToRegion, o.ToDistrict,
		stateEmoji(state), stateLabel(state),
		o.CreatedAt.Format("02.01.2006"))
}

func stateEmoji(s domain.State) string {
	switch s {
	case domain.StateInitiated:
		return "🕐"
	case domain.StateProcessing:
		return "🔄"
	case domain.StateCompleted:
		return "✅"
	case domain.StateCanceled:
		return "❌"
	case domain.StateFailed:
		return "⚠️"
	}
	return "❔"
}

func stateLabel(s domain.State) string {
	switch s {
	case domain.StateInitiated:
		return "Haydovchi kutilmoqda"
	case domain.StateProcessing:
		return "Haydovchi topildi"
	case domain.StateCompleted:
		return "Yakunlangan"
	case domain.StateCanceled:
		return "Bekor qilingan"
	case domain.StateFailed:
		return "Amalga oshmagan"
	}
	return string(s)
}
