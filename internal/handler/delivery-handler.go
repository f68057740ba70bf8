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

func (h *Handler) startDeliveryFlow(ctx context.Context, b *bot.Bot, telegramID int64) {
	state := &domain.UserState{
		Step: domain.StepDeliveryFromRegion,
		Kind: string(domain.KindDelivery),
	}
	h.saveSession(ctx, telegramID, state)
	h.sendRegionKeyboard(ctx, b, telegramID, "📦 <b>Yuk jo'natish</b>\n\n📍 Qaysi viloyatdan?")
}

func (h *Handler) sendPackageTypeKeyboard(ctx context.Context, b *bot.Bot, chatID int64) {
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "📄 Hujjat", CallbackData: "ptype_" + domain.PackageTypeDocument},
				{Text: "📦 Posilka", CallbackData: "ptype_" + domain.PackageTypeParcel},
			},
			{
				{Text: "🥚 Mo'rt yuk", CallbackData: "ptype_" + domain.PackageTypeFragile},
				{Text: "💎 Qimmatbaho", CallbackData: "ptype_" + domain.PackageTypeValuable},
			},
			{
				{Text: "❓ Boshqa", CallbackData: "ptype_" + domain.PackageTypeOther},
			},
			{{Text: "❌ Bekor qilish", CallbackData: "cancel_flow"}},
		},
	}
	h.sendHTML(ctx, b, chatID, "📋 Yuk turini tanlang:", keyboard)
}

func (h *Handler) sendPackageSizeKeyboard(ctx context.Context, b *bot.Bot, chatID int64) {
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Kichik", CallbackData: "psize_" + domain.PackageSizeSmall},
				{Text: "O'rtacha", CallbackData: "psize_" + domain.PackageSizeMedium},
			},
			{
				{Text: "Katta", CallbackData: "psize_" + domain.PackageSizeLarge},
				{Text: "Juda katta", CallbackData: "psize_" + domain.PackageSizeExtraLarge},
			},
			{{Text: "❌ Bekor qilish", CallbackData: "cancel_flow"}},
		},
	}
	h.sendHTML(ctx, b, chatID, "📏 Yuk hajmini tanlang:", keyboard)
}

func (h *Handler) handlePackageCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	state, err := h.sessions.Get(ctx, cb.From.ID)
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, "ptype_") && state.Step == domain.StepDeliveryPackageType:
		state.PackageType = strings.TrimPrefix(cb.Data, "ptype_")
		state.Step = domain.StepDeliveryPackageSize
		h.saveSession(ctx, cb.From.ID, state)
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendPackageSizeKeyboard(ctx, b, cb.From.ID)

	case strings.HasPrefix(cb.Data, "psize_") && state.Step == domain.StepDeliveryPackageSize:
		state.PackageSize = strings.TrimPrefix(cb.Data, "psize_")
		state.Step = domain.StepDeliveryWeight
		h.saveSession(ctx, cb.From.ID, state)
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendHTML(ctx, b, cb.From.ID,
			"⚖️ Yuk og'irligini kg hisobida kiriting (masalan, 2.5):", nil)

	default:
		h.answerCallback(ctx, b, cb.ID, "", false)
	}
}

func (h *Handler) continueDeliveryFlow(ctx context.Context, b *bot.Bot, user *domain.User, msg *models.Message, state *domain.UserState) {
	text := strings.TrimSpace(msg.Text)

	switch state.Step {
	case domain.StepDeliveryWeight:
		weight, err := ParseWeight(text)
		if err != nil {
			h.sendHTML(ctx, b, msg.From.ID,
				"❌ Og'irlik noto'g'ri. 0 dan 1000 kg gacha son kiriting:", nil)
			return
		}
		state.PackageWeight = weight
		state.Step = domain.StepDeliveryDescription
		h.saveSession(ctx, msg.From.ID, state)
		h.sendHTML(ctx, b, msg.From.ID,
			"💬 Yuk haqida qisqacha izoh yozing (ixtiyoriy, o'tkazish uchun \"-\"):", nil)

	case domain.StepDeliveryDescription:
		if text != "-" {
			state.PackageDescription = text
		}
		state.Step = domain.StepDeliveryReceiverName
		h.saveSession(ctx, msg.From.ID, state)
		h.sendHTML(ctx, b, msg.From.ID, "👤 Qabul qiluvchining ismini kiriting:", nil)

	case domain.StepDeliveryReceiverName:
		if text == "" {
			h.sendHTML(ctx, b, msg.From.ID, "Iltimos, qabul qiluvchining ismini yozing:", nil)
			return
		}
		state.ReceiverName = text
		state.Step = domain.StepDeliveryReceiverPhone
		h.saveSession(ctx, msg.From.ID, state)
		h.sendHTML(ctx, b, msg.From.ID,
			"📞 Qabul qiluvchining telefon raqamini kiriting:", nil)

	case domain.StepDeliveryReceiverPhone:
		phone, err := NormalizePhone(text)
		if err != nil {
			h.sendHTML(ctx, b, msg.From.ID,
				"❌ Raqam noto'g'ri. +998901234567 ko'rinishida yozing:", nil)
			return
		}
		state.ReceiverPhone = phone
		state.Step = domain.StepDeliveryConfirm
		h.saveSession(ctx, msg.From.ID, state)
		h.sendDeliverySummary(ctx, b, msg.From.ID, state)
	}
}

func (h *Handler) sendDeliverySummary(ctx context.Context, b *bot.Bot, chatID int64, state *domain.UserState) {
	text := fmt.Sprintf(
		"📦 <b>Buyurtmani tasdiqlang</b>\n\n"+
			"📍 <b>Qayerdan:</b> %s, %s\n"+
			"🏁 <b>Qayerga:</b> %s, %s\n"+
			"📋 <b>Turi:</b> %s\n"+
			"📏 <b>Hajmi:</b> %s\n"+
			"⚖️ <b>Og'irligi:</b> %.1f kg\n"+
			"👤 <b>Qabul qiluvchi:</b> %s, %s",
		state.FromRegion, state.FromDistrict,
		state.ToRegion, state.ToDistrict,
		state.PackageType, state.PackageSize,
		state.PackageWeight,
		state.ReceiverName, state.ReceiverPhone,
	)
	if state.PackageDescription != "" {
		text += "\n💬 <b>Izoh:</b> " + state.PackageDescription
	}

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
