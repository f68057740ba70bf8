package handler

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
)

// The trip and delivery flows share the route selection steps: four
// region/district picks driven by inline keyboards. The session step
// decides which field the picked id lands in.

func (h *Handler) sendRegionKeyboard(ctx context.Context, b *bot.Bot, chatID int64, prompt string) {
	regions, err := h.regionRepo.ListRegions(ctx)
	if err != nil {
		h.logger.Error("Failed to list regions", zap.Error(err))
		h.sendHTML(ctx, b, chatID, "❌ Viloyatlar ro'yxatini olishda xatolik.", nil)
		return
	}

	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, region := range regions {
		row = append(row, models.InlineKeyboardButton{
			Text:         region.Name,
			CallbackData: fmt.Sprintf("region_%d", region.ID),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "❌ Bekor qilish", CallbackData: "cancel_flow"},
	})

	h.sendHTML(ctx, b, chatID, prompt, &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (h *Handler) sendDistrictKeyboard(ctx context.Context, b *bot.Bot, chatID, regionID int64, prompt string) {
	districts, err := h.regionRepo.ListDistricts(ctx, regionID)
	if err != nil {
		h.logger.Error("Failed to list districts", zap.Error(err), zap.Int64("region_id", regionID))
		h.sendHTML(ctx, b, chatID, "❌ Tumanlar ro'yxatini olishda xatolik.", nil)
		return
	}

	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, district := range districts {
		row = append(row, models.InlineKeyboardButton{
			Text:         district.Name,
			CallbackData: fmt.Sprintf("district_%d", district.ID),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "❌ Bekor qilish", CallbackData: "cancel_flow"},
	})

	h.sendHTML(ctx, b, chatID, prompt, &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (h *Handler) handleLocationCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	state, err := h.sessions.Get(ctx, cb.From.ID)
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		return
	}

	if regionID, ok := parseCallbackID(cb.Data, "region_"); ok {
		h.pickRegion(ctx, b, cb, state, regionID)
		return
	}
	if districtID, ok := parseCallbackID(cb.Data, "district_"); ok {
		h.pickDistrict(ctx, b, cb, state, districtID)
		return
	}
	h.answerCallback(ctx, b, cb.ID, "", false)
}

func (h *Handler) pickRegion(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery, state *domain.UserState, regionID int64) {
	region, err := h.regionRepo.GetRegion(ctx, regionID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Viloyat topilmadi", true)
		return
	}

	switch state.Step {
	case domain.StepTripFromRegion, domain.StepDeliveryFromRegion:
		state.FromRegionID = region.ID
		state.FromRegion = region.Name
		if state.Step == domain.StepTripFromRegion {
			state.Step = domain.StepTripFromDistrict
		} else {
			state.Step = domain.StepDeliveryFromDistrict
		}
		h.saveSession(ctx, cb.From.ID, state)
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendDistrictKeyboard(ctx, b, cb.From.ID, region.ID,
			"📍 <b>"+region.Name+"</b>: qaysi tumandan?")

	case domain.StepTripToRegion, domain.StepDeliveryToRegion:
		state.ToRegionID = region.ID
		state.ToRegion = region.Name
		if state.Step == domain.StepTripToRegion {
			state.Step = domain.StepTripToDistrict
		} else {
			state.Step = domain.StepDeliveryToDistrict
		}
		h.saveSession(ctx, cb.From.ID, state)
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendDistrictKeyboard(ctx, b, cb.From.ID, region.ID,
			"🏁 <b>"+region.Name+"</b>: qaysi tumanga?")

	default:
		h.answerCallback(ctx, b, cb.ID, "", false)
	}
}

func (h *Handler) pickDistrict(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery, state *domain.UserState, districtID int64) {
	district, err := h.regionRepo.GetDistrict(ctx, districtID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Tuman topilmadi", true)
		return
	}

	switch state.Step {
	case domain.StepTripFromDistrict, domain.StepDeliveryFromDistrict:
		// A stale keyboard can offer districts of a different region.
		if district.RegionID != state.FromRegionID {
			h.answerCallback(ctx, b, cb.ID, "Eskirgan tugma", true)
			return
		}
		state.FromDistrictID = district.ID
		state.FromDistrict = district.Name
		if state.Step == domain.StepTripFromDistrict {
			state.Step = domain.StepTripToRegion
		} else {
			state.Step = domain.StepDeliveryToRegion
		}
		h.saveSession(ctx, cb.From.ID, state)
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendRegionKeyboard(ctx, b, cb.From.ID, "🏁 Qaysi viloyatga?")

	case domain.StepTripToDistrict, domain.StepDeliveryToDistrict:
		if district.RegionID != state.ToRegionID {
			h.answerCallback(ctx, b, cb.ID, "Eskirgan tugma", true)
			return
		}
		state.ToDistrictID = district.ID
		state.ToDistrict = district.Name
		h.answerCallback(ctx, b, cb.ID, "", false)

		if state.Step == domain.StepTripToDistrict {
			state.Step = domain.StepTripPassengers
			h.saveSession(ctx, cb.From.ID, state)
			h.sendPassengersKeyboard(ctx, b, cb.From.ID)
		} else {
			state.Step = domain.StepDeliveryPackageType
			h.saveSession(ctx, cb.From.ID, state)
			h.sendPackageTypeKeyboard(ctx, b, cb.From.ID)
		}

	default:
		h.answerCallback(ctx, b, cb.ID, "", false)
	}
}
