package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
)

func (h *Handler) startTripFlow(ctx context.Context, b *bot.Bot, telegramID int64) {
	state := &domain.UserState{
		Step: domain.StepTripFromRegion,
		Kind: string(domain.KindTrip),
	}
	h.saveSession(ctx, telegramID, state)
	h.sendRegionKeyboard(ctx, b, telegramID, "🚖 <b>Safar buyurtmasi</b>\n\n📍 Qaysi viloyatdan?")
}

func (h *Handler) sendPassengersKeyboard(ctx context.Context, b *bot.Bot, chatID int64) {
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "1", CallbackData: "passengers_1"},
				{Text: "2", CallbackData: "passengers_2"},
				{Text: "3", CallbackData: "passengers_3"},
				{Text: "4", CallbackData: "passengers_4"},
			},
			{{Text: "❌ Bekor qilish", CallbackData: "cancel_flow"}},
		},
	}
	h.sendHTML(ctx, b, chatID, "👥 Necha kishi boradi?", keyboard)
}

func (h *Handler) handlePassengersCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	state, err := h.sessions.Get(ctx, cb.From.ID)
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		return
	}
	if state.Step != domain.StepTripPassengers {
		h.answerCallback(ctx, b, cb.ID, "", false)
		return
	}

	count, ok := parseCallbackID(cb.Data, "passengers_")
	if !ok || count < 1 || count > 4 {
		h.answerCallback(ctx, b, cb.ID, "", false)
		return
	}

	state.Passengers = int(count)
	state.Step = domain.StepTripDate
	h.saveSession(ctx, cb.From.ID, state)

	h.answerCallback(ctx, b, cb.ID, "", false)
	h.sendHTML(ctx, b, cb.From.ID,
		"📅 Jo'nash sanasini kiriting (masalan, 15.09.2026):", nil)
}

func (h *Handler) continueTripFlow(ctx context.Context, b *bot.Bot, user *domain.User, msg *models.Message, state *domain.UserState) {
	switch state.Step {
	case domain.StepTripPassengers:
		// Typed instead of using the keyboard.
		count, err := ParsePassengers(msg.Text)
		if err != nil {
			h.sendHTML(ctx, b, msg.From.ID, "❌ 1 dan 4 gacha son kiriting.", nil)
			return
		}
		state.Passengers = count
		state.Step = domain.StepTripDate
		h.saveSession(ctx, msg.From.ID, state)
		h.sendHTML(ctx, b, msg.From.ID,
			"📅 Jo'nash sanasini kiriting (masalan, 15.09.2026):", nil)

	case domain.StepTripDate:
		date, err := ParseDepartureDate(msg.Text, time.Now())
		if err != nil {
			h.sendHTML(ctx, b, msg.From.ID,
				"❌ Sana noto'g'ri. 15.09.2026 ko'rinishida kiriting:", nil)
			return
		}
		state.Date = date
		state.Step = domain.StepTripTime
		h.saveSession(ctx, msg.From.ID, state)
		h.sendHTML(ctx, b, msg.From.ID,
			"🕒 Jo'nash vaqtini kiriting (masalan, 14:30):", nil)

	case domain.StepTripTime:
		departure, err := CombineDepartureTime(state.Date, msg.Text, time.Now())
		if err != nil {
			h.sendHTML(ctx, b, msg.From.ID,
				"❌ Vaqt noto'g'ri. 14:30 ko'rinishida kiriting:", nil)
			return
		}
		state.Time = departure.Format(timeLayout)
		state.Step = domain.StepTripConfirm
		h.saveSession(ctx, msg.From.ID, state)
		h.sendTripSummary(ctx, b, msg.From.ID, state, departure)
	}
}

func (h *Handler) sendTripSummary(ctx context.Context, b *bot.Bot, chatID int64, state *domain.UserState, departure time.Time) {
	text := fmt.Sprintf(
		"🚖 <b>Buyurtmani tasdiqlang</b>\n\n"+
			"📍 <b>Qayerdan:</b> %s, %s\n"+
			"🏁 <b>Qayerga:</b> %s, %s\n"+
			"👥 <b>Yo'lovchilar:</b> %d\n"+
			"🕒 <b>Jo'nash vaqti:</b> %s",
		state.FromRegion, state.FromDistrict,
		state.ToRegion, state.ToDistrict,
		state.Passengers,
		departure.Format(dateLayout+" "+timeLayout),
	)

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Tasdiqlash", CallbackData: "confirm_order"},
				{Text: "❌ Bekor qilish", CallbackData: "cancel_flow"},
			},
		},
	}
	h.sendHTML(ctx, b, chatID, text, keyboard)
}
