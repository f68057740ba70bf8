package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
	"yolda/internal/repository"
)

// The admin panel manages the region/district directory and shows service
// statistics. It is unlocked for the configured owner only.

func (h *Handler) isOwner(telegramID int64) bool {
	return h.cfg.OwnerTelegramID != 0 && telegramID == h.cfg.OwnerTelegramID
}

func (h *Handler) handleAdminCommand(ctx context.Context, b *bot.Bot, msg *models.Message) {
	if !h.isOwner(msg.From.ID) {
		h.sendHTML(ctx, b, msg.From.ID, "⛔️ Bu bo'lim faqat administrator uchun.", nil)
		return
	}
	h.sendAdminMenu(ctx, b, msg.From.ID)
}

func (h *Handler) sendAdminMenu(ctx context.Context, b *bot.Bot, chatID int64) {
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "📊 Statistika", CallbackData: "admin_stats"}},
			{{Text: "🗺 Viloyatlar", CallbackData: "admin_regions"}},
		},
	}
	h.sendHTML(ctx, b, chatID, "🛠 <b>Administrator paneli</b>", keyboard)
}

func (h *Handler) handleAdminCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	if !h.isOwner(cb.From.ID) {
		h.answerCallback(ctx, b, cb.ID, "⛔️ Ruxsat yo'q", true)
		return
	}

	data := cb.Data
	switch {
	case data == "admin_menu":
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendAdminMenu(ctx, b, cb.From.ID)

	case data == "admin_stats":
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.showStatistics(ctx, b, cb.From.ID)

	case data == "admin_regions":
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.showRegionPanel(ctx, b, cb.From.ID)

	case data == "admin_add_region":
		h.saveSession(ctx, cb.From.ID, &domain.UserState{Step: domain.StepAdminRegionName})
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendHTML(ctx, b, cb.From.ID, "Yangi viloyat nomini kiriting:", nil)

	case strings.HasPrefix(data, "admin_rename_region_"):
		regionID, ok := parseCallbackID(data, "admin_rename_region_")
		if !ok {
			return
		}
		h.saveSession(ctx, cb.From.ID, &domain.UserState{
			Step:          domain.StepAdminRegionRename,
			AdminRegionID: regionID,
		})
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendHTML(ctx, b, cb.From.ID, "Viloyat uchun yangi nom kiriting:", nil)

	case strings.HasPrefix(data, "admin_delete_region_"):
		regionID, ok := parseCallbackID(data, "admin_delete_region_")
		if !ok {
			return
		}
		h.deleteRegion(ctx, b, cb, regionID)

	case strings.HasPrefix(data, "admin_add_district_"):
		regionID, ok := parseCallbackID(data, "admin_add_district_")
		if !ok {
			return
		}
		h.saveSession(ctx, cb.From.ID, &domain.UserState{
			Step:          domain.StepAdminDistrictName,
			AdminRegionID: regionID,
		})
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendHTML(ctx, b, cb.From.ID, "Yangi tuman nomini kiriting:", nil)

	case strings.HasPrefix(data, "admin_rename_district_"):
		districtID, ok := parseCallbackID(data, "admin_rename_district_")
		if !ok {
			return
		}
		h.saveSession(ctx, cb.From.ID, &domain.UserState{
			Step:            domain.StepAdminDistrictRename,
			AdminDistrictID: districtID,
		})
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.sendHTML(ctx, b, cb.From.ID, "Tuman uchun yangi nom kiriting:", nil)

	case strings.HasPrefix(data, "admin_delete_district_"):
		districtID, ok := parseCallbackID(data, "admin_delete_district_")
		if !ok {
			return
		}
		h.deleteDistrict(ctx, b, cb, districtID)

	case strings.HasPrefix(data, "admin_region_"):
		regionID, ok := parseCallbackID(data, "admin_region_")
		if !ok {
			return
		}
		h.answerCallback(ctx, b, cb.ID, "", false)
		h.showRegionDetail(ctx, b, cb.From.ID, regionID)

	default:
		h.answerCallback(ctx, b, cb.ID, "", false)
	}
}

func (h *Handler) showRegionPanel(ctx context.Context, b *bot.Bot, chatID int64) {
	regions, err := h.regionRepo.ListRegions(ctx)
	if err != nil {
		h.logger.Error("Failed to list regions", zap.Error(err))
		h.sendHTML(ctx, b, chatID, "❌ Viloyatlarni olishda xatolik.", nil)
		return
	}

	var rows [][]models.InlineKeyboardButton
	for _, region := range regions {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         region.Name,
			CallbackData: fmt.Sprintf("admin_region_%d", region.ID),
		}})
	}
	rows = append(rows,
		[]models.InlineKeyboardButton{{Text: "➕ Viloyat qo'shish", CallbackData: "admin_add_region"}},
		[]models.InlineKeyboardButton{{Text: "⬅️ Orqaga", CallbackData: "admin_menu"}},
	)

	h.sendHTML(ctx, b, chatID,
		fmt.Sprintf("🗺 <b>Viloyatlar</b> (%d ta)", len(regions)),
		&models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (h *Handler) showRegionDetail(ctx context.Context, b *bot.Bot, chatID, regionID int64) {
	region, err := h.regionRepo.GetRegion(ctx, regionID)
	if err != nil {
		h.sendHTML(ctx, b, chatID, "❌ Viloyat topilmadi.", nil)
		return
	}

	var rows [][]models.InlineKeyboardButton
	for _, district := range region.Districts {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: district.Name, CallbackData: fmt.Sprintf("admin_rename_district_%d", district.ID)},
			{Text: "🗑", CallbackData: fmt.Sprintf("admin_delete_district_%d", district.ID)},
		})
	}
	rows = append(rows,
		[]models.InlineKeyboardButton{
			{Text: "➕ Tuman qo'shish", CallbackData: fmt.Sprintf("admin_add_district_%d", region.ID)},
		},
		[]models.InlineKeyboardButton{
			{Text: "✏️ Nomini o'zgartirish", CallbackData: fmt.Sprintf("admin_rename_region_%d", region.ID)},
			{Text: "🗑 O'chirish", CallbackData: fmt.Sprintf("admin_delete_region_%d", region.ID)},
		},
		[]models.InlineKeyboardButton{{Text: "⬅️ Orqaga", CallbackData: "admin_regions"}},
	)

	h.sendHTML(ctx, b, chatID,
		fmt.Sprintf("🗺 <b>%s</b>: %d ta tuman\nTuman nomini bosib, uni o'zgartirishingiz mumkin.",
			region.Name, len(region.Districts)),
		&models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (h *Handler) deleteRegion(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery, regionID int64) {
	err := h.regionRepo.DeleteRegion(ctx, regionID)
	if err != nil {
		if errors.Is(err, repository.ErrRegionInUse) {
			h.answerCallback(ctx, b, cb.ID,
				"O'chirib bo'lmaydi: bu viloyatga bog'langan buyurtmalar bor", true)
			return
		}
		h.logger.Error("Failed to delete region", zap.Error(err), zap.Int64("region_id", regionID))
		h.answerCallback(ctx, b, cb.ID, "Xatolik yuz berdi", true)
		return
	}

	h.answerCallback(ctx, b, cb.ID, "Viloyat o'chirildi", false)
	h.showRegionPanel(ctx, b, cb.From.ID)
}

func (h *Handler) deleteDistrict(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery, districtID int64) {
	district, err := h.regionRepo.GetDistrict(ctx, districtID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Tuman topilmadi", true)
		return
	}

	if err := h.regionRepo.DeleteDistrict(ctx, districtID); err != nil {
		if errors.Is(err, repository.ErrRegionInUse) {
			h.answerCallback(ctx, b, cb.ID,
				"O'chirib bo'lmaydi: bu tumanga bog'langan buyurtmalar bor", true)
			return
		}
		h.logger.Error("Failed to delete district", zap.Error(err), zap.Int64("district_id", districtID))
		h.answerCallback(ctx, b, cb.ID, "Xatolik yuz berdi", true)
		return
	}

	h.answerCallback(ctx, b, cb.ID, "Tuman o'chirildi", false)
	h.showRegionDetail(ctx, b, cb.From.ID, district.RegionID)
}

func (h *Handler) continueAdminInput(ctx context.Context, b *bot.Bot, msg *models.Message, state *domain.UserState) {
	if !h.isOwner(msg.From.ID) {
		h.clearSession(ctx, msg.From.ID)
		return
	}

	name := strings.TrimSpace(msg.Text)
	if name == "" {
		h.sendHTML(ctx, b, msg.From.ID, "Iltimos, nom kiriting:", nil)
		return
	}

	switch state.Step {
	case domain.StepAdminRegionName:
		if _, err := h.regionRepo.CreateRegion(ctx, name); err != nil {
			h.reportAdminError(ctx, b, msg.From.ID, err)
			return
		}
		h.clearSession(ctx, msg.From.ID)
		h.sendHTML(ctx, b, msg.From.ID, "✅ Viloyat qo'shildi: "+name, nil)
		h.showRegionPanel(ctx, b, msg.From.ID)

	case domain.StepAdminRegionRename:
		if err := h.regionRepo.RenameRegion(ctx, state.AdminRegionID, name); err != nil {
			h.reportAdminError(ctx, b, msg.From.ID, err)
			return
		}
		h.clearSession(ctx, msg.From.ID)
		h.sendHTML(ctx, b, msg.From.ID, "✅ Viloyat nomi yangilandi.", nil)
		h.showRegionDetail(ctx, b, msg.From.ID, state.AdminRegionID)

	case domain.StepAdminDistrictName:
		if _, err := h.regionRepo.CreateDistrict(ctx, state.AdminRegionID, name); err != nil {
			h.reportAdminError(ctx, b, msg.From.ID, err)
			return
		}
		h.clearSession(ctx, msg.From.ID)
		h.sendHTML(ctx, b, msg.From.ID, "✅ Tuman qo'shildi: "+name, nil)
		h.showRegionDetail(ctx, b, msg.From.ID, state.AdminRegionID)

	case domain.StepAdminDistrictRename:
		if err := h.regionRepo.RenameDistrict(ctx, state.AdminDistrictID, name); err != nil {
			h.reportAdminError(ctx, b, msg.From.ID, err)
			return
		}
		district, err := h.regionRepo.GetDistrict(ctx, state.AdminDistrictID)
		h.clearSession(ctx, msg.From.ID)
		h.sendHTML(ctx, b, msg.From.ID, "✅ Tuman nomi yangilandi.", nil)
		if err == nil {
			h.showRegionDetail(ctx, b, msg.From.ID, district.RegionID)
		}
	}
}

func (h *Handler) reportAdminError(ctx context.Context, b *bot.Bot, chatID int64, err error) {
	if errors.Is(err, repository.ErrDuplicateName) {
		h.sendHTML(ctx, b, chatID, "❌ Bunday nom allaqachon mavjud. Boshqa nom kiriting:", nil)
		return
	}
	h.logger.Error("Admin directory operation failed", zap.Error(err))
	h.sendHTML(ctx, b, chatID, "❌ Xatolik yuz berdi.", nil)
}

func (h *Handler) showStatistics(ctx context.Context, b *bot.Bot, chatID int64) {
	stats, err := h.orderRepo.GetStatistics(ctx)
	if err != nil {
		h.logger.Error("Failed to get statistics", zap.Error(err))
		h.sendHTML(ctx, b, chatID, "❌ Statistikani olishda xatolik.", nil)
		return
	}

	total, drivers, passengers, err := h.userRepo.CountByRole(ctx)
	if err == nil {
		stats.TotalUsers = total
		stats.DriverCount = drivers
		stats.PassengerCount = passengers
	}

	text := fmt.Sprintf(
		"📊 <b>Statistika</b>\n\n"+
			"📦 <b>Buyurtmalar:</b> %d (safar: %d, yuk: %d)\n"+
			"📅 Bugun: %d · Hafta: %d\n\n"+
			"🕐 Kutilmoqda: %d\n"+
			"🔄 Jarayonda: %d\n"+
			"✅ Yakunlangan: %d\n"+
			"❌ Bekor qilingan: %d\n"+
			"⚠️ Amalga oshmagan: %d\n\n"+
			"👥 <b>Foydalanuvchilar:</b> %d (haydovchi: %d, yo'lovchi: %d)",
		stats.TotalOrders, stats.TotalTrips, stats.TotalDelivery,
		stats.TodayOrders, stats.WeeklyOrders,
		stats.ByState[domain.StateInitiated],
		stats.ByState[domain.StateProcessing],
		stats.ByState[domain.StateCompleted],
		stats.ByState[domain.StateCanceled],
		stats.ByState[domain.StateFailed],
		stats.TotalUsers, stats.DriverCount, stats.PassengerCount)

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "⬅️ Orqaga", CallbackData: "admin_menu"}},
		},
	}
	h.sendHTML(ctx, b, chatID, text, keyboard)
}
