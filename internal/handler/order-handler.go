package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
	"yolda/internal/order"
	"yolda/internal/repository"
)

// handleConfirmOrder finalizes a trip or delivery flow: the order is
// persisted, announced to the channel, its lifecycle timers armed, and
// drivers notified.
func (h *Handler) handleConfirmOrder(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	state, err := h.sessions.Get(ctx, cb.From.ID)
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		return
	}
	if state.Step != domain.StepTripConfirm && state.Step != domain.StepDeliveryConfirm {
		h.answerCallback(ctx, b, cb.ID, "", false)
		return
	}

	user, err := h.userRepo.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Avval ro'yxatdan o'ting: /start", true)
		return
	}

	req := &domain.CreateOrderRequest{
		Kind:           domain.OrderKind(state.Kind),
		PassengerID:    user.ID,
		FromRegionID:   state.FromRegionID,
		FromDistrictID: state.FromDistrictID,
		ToRegionID:     state.ToRegionID,
		ToDistrictID:   state.ToDistrictID,
	}

	if req.Kind == domain.KindTrip {
		req.Passengers = state.Passengers
		departure, err := time.ParseInLocation(dateLayout+" "+timeLayout,
			state.Date+" "+state.Time, time.Now().Location())
		if err == nil {
			req.DepartureTime = &departure
		}
	} else {
		req.PackageType = state.PackageType
		req.PackageSize = state.PackageSize
		if state.PackageWeight > 0 {
			weight := state.PackageWeight
			req.PackageWeight = &weight
		}
		req.PackageDescription = state.PackageDescription
		req.ReceiverName = state.ReceiverName
		req.ReceiverPhone = state.ReceiverPhone
	}

	o, err := h.orderRepo.CreateOrder(ctx, req)
	if err != nil {
		h.logger.Error("Failed to create order", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		h.answerCallback(ctx, b, cb.ID, "Buyurtma yaratishda xatolik", true)
		return
	}

	h.clearSession(ctx, cb.From.ID)
	h.answerCallback(ctx, b, cb.ID, "✅ Buyurtma qabul qilindi", false)

	// Announcement and timers. Channel failures are swallowed inside the
	// announcer: the order already exists and stays claimable.
	h.announcer.Post(ctx, o)
	h.scheduler.ArmLifecycle(o.ID)

	h.sendMainMenu(ctx, b, cb.From.ID, fmt.Sprintf(
		"✅ <b>Buyurtma №%d qabul qilindi!</b>\n\n"+
			"Kanalga e'lon qilindi, haydovchi topilganda sizga xabar beramiz.", o.ID))

	go h.notifyDrivers(context.WithoutCancel(ctx), o)
}

// notifyDrivers fans the new order out to every registered driver.
func (h *Handler) notifyDrivers(ctx context.Context, o *domain.Order) {
	drivers, err := h.userRepo.ListActiveDrivers(ctx)
	if err != nil {
		h.logger.Error("Failed to list drivers for fan-out", zap.Error(err), zap.Int64("order_id", o.ID))
		return
	}

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "✅ Qabul qilish", CallbackData: fmt.Sprintf("accept_order_%d", o.ID)}},
		},
	}

	text := fmt.Sprintf(
		"🔔 <b>Yangi buyurtma №%d</b>\n\n"+
			"📍 %s, %s ➜ %s, %s",
		o.ID, o.FromRegion, o.FromDistrict, o.ToRegion, o.ToDistrict)

	sent := 0
	for _, driver := range drivers {
		if driver.ID == o.PassengerID {
			continue
		}
		_, err := h.tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      driver.TelegramID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: keyboard,
		})
		if err != nil {
			h.logger.Warn("Failed to notify driver",
				zap.Int64("order_id", o.ID),
				zap.Int64("telegram_id", driver.TelegramID),
				zap.Error(err))
			continue
		}
		sent++
	}

	h.logger.Info("Order fanned out to drivers",
		zap.Int64("order_id", o.ID), zap.Int("sent", sent))
}

// handleClaimCallback is the single-claim contract at the button level:
// whoever presses first gets the order, everyone else gets told why not.
func (h *Handler) handleClaimCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	orderID, ok := claimOrderID(cb.Data)
	if !ok {
		h.answerCallback(ctx, b, cb.ID, "", false)
		return
	}

	claimer, err := h.userRepo.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			h.answerCallback(ctx, b, cb.ID,
				"Avval botda ro'yxatdan o'ting: "+h.cfg.BotUsername, true)
			return
		}
		h.logger.Error("Failed to load claimer", zap.Error(err), zap.Int64("telegram_id", cb.From.ID))
		return
	}

	if !h.isChannelMember(ctx, b, cb.From.ID) {
		h.answerCallback(ctx, b, cb.ID, "Buyurtma olish uchun kanal a'zosi bo'lishingiz kerak", true)
		return
	}

	o, err := h.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Buyurtma topilmadi", true)
		return
	}
	if o.PassengerID == claimer.ID {
		h.answerCallback(ctx, b, cb.ID, "O'z buyurtmangizni qabul qila olmaysiz", true)
		return
	}

	result, err := h.machine.Claim(ctx, orderID, claimer.ID)
	if err != nil {
		h.logger.Error("Claim failed", zap.Error(err), zap.Int64("order_id", orderID))
		h.answerCallback(ctx, b, cb.ID, "Xatolik yuz berdi, qayta urinib ko'ring", true)
		return
	}

	switch result.Outcome {
	case order.ClaimAccepted:
		h.scheduler.ArmProcessing(orderID)
		h.afterClaim(ctx, b, orderID, claimer)
		h.answerCallback(ctx, b, cb.ID, "✅ Buyurtma sizga biriktirildi", false)

	case order.ClaimAlreadyYours:
		// Double press: answered without re-arming the timer.
		h.answerCallback(ctx, b, cb.ID, "Bu buyurtma allaqachon sizda", false)

	case order.ClaimTakenByOther:
		h.answerCallback(ctx, b, cb.ID, "Afsuski, buyurtmani boshqa haydovchi oldi", true)

	case order.ClaimNotClaimable:
		h.answerCallback(ctx, b, cb.ID, "Bu buyurtma endi mavjud emas", true)
	}
}

// afterClaim runs the side effects of a won claim: channel resync and the
// contact exchange between owner and driver.
func (h *Handler) afterClaim(ctx context.Context, b *bot.Bot, orderID int64, driver *domain.User) {
	o, err := h.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		h.logger.Error("Failed to reload claimed order", zap.Error(err), zap.Int64("order_id", orderID))
		return
	}

	h.announcer.Resync(ctx, o)

	owner, err := h.userRepo.GetUserByID(ctx, o.PassengerID)
	if err != nil {
		h.logger.Error("Failed to load order owner", zap.Error(err), zap.Int64("order_id", orderID))
		return
	}

	// Owner gets the driver's contact plus the resolve buttons.
	h.sendHTML(ctx, b, owner.TelegramID, fmt.Sprintf(
		"🚗 <b>Buyurtma №%d uchun haydovchi topildi!</b>\n\n"+
			"👤 %s\n📞 %s\n\n"+
			"Haydovchi bilan bog'laning. Safar yakunlangach, tugmani bosing.",
		o.ID, driver.FullName(), driver.PhoneNumber),
		ownerOrderKeyboard(o.ID))

	// Driver gets the owner's contact.
	h.sendHTML(ctx, b, driver.TelegramID, fmt.Sprintf(
		"✅ <b>Buyurtma №%d sizga biriktirildi</b>\n\n"+
			"📍 %s, %s ➜ %s, %s\n"+
			"👤 %s\n📞 %s",
		o.ID, o.FromRegion, o.FromDistrict, o.ToRegion, o.ToDistrict,
		owner.FullName(), owner.PhoneNumber),
		driverOrderKeyboard(o.ID))
}

// handleResolveCallback finishes an order with a terminal outcome.
func (h *Handler) handleResolveCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery, outcome domain.State) {
	prefix := "complete_order_"
	if outcome == domain.StateCanceled {
		prefix = "cancel_order_"
	}
	orderID, ok := parseCallbackID(cb.Data, prefix)
	if !ok {
		h.answerCallback(ctx, b, cb.ID, "", false)
		return
	}

	actor, err := h.userRepo.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Avval ro'yxatdan o'ting: /start", true)
		return
	}

	o, err := h.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		h.answerCallback(ctx, b, cb.ID, "Buyurtma topilmadi", true)
		return
	}

	isOwner := o.PassengerID == actor.ID
	isDriver := o.DriverID != nil && *o.DriverID == actor.ID
	if !isOwner && !isDriver {
		h.answerCallback(ctx, b, cb.ID, "Bu buyurtma sizga tegishli emas", true)
		return
	}

	prev, err := h.machine.Resolve(ctx, orderID, outcome)
	if err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			h.answerCallback(ctx, b, cb.ID, "Buyurtma allaqachon yakunlangan", true)
			return
		}
		h.logger.Error("Resolve failed", zap.Error(err),
			zap.Int64("order_id", orderID), zap.String("outcome", string(outcome)))
		h.answerCallback(ctx, b, cb.ID, "Xatolik yuz berdi, qayta urinib ko'ring", true)
		return
	}

	// Terminal state reached: every pending timer for this order is moot.
	h.scheduler.CancelProcessing(orderID)
	h.scheduler.CancelLifecycle(orderID)

	resolved, err := h.orderRepo.GetOrder(ctx, orderID)
	if err == nil {
		h.announcer.Resync(ctx, resolved)
	}

	label := "✅ yakunlandi"
	if outcome == domain.StateCanceled {
		label = "❌ bekor qilindi"
	}
	h.answerCallback(ctx, b, cb.ID, fmt.Sprintf("Buyurtma №%d %s", orderID, label), false)

	// A driver was in the loop only if the order was in processing.
	if prev == domain.StateProcessing {
		h.notifyCounterpart(ctx, b, o, actor, outcome)
	}

	h.logger.Info("Order resolved by actor",
		zap.Int64("order_id", orderID),
		zap.String("actor_id", actor.ID),
		zap.String("outcome", string(outcome)),
		zap.String("previous", string(prev)))
}

// notifyCounterpart tells the other party how the order ended.
func (h *Handler) notifyCounterpart(ctx context.Context, b *bot.Bot, o *domain.Order, actor *domain.User, outcome domain.State) {
	var counterpartID string
	if o.PassengerID == actor.ID {
		if o.DriverID == nil {
			return
		}
		counterpartID = *o.DriverID
	} else {
		counterpartID = o.PassengerID
	}

	counterpart, err := h.userRepo.GetUserByID(ctx, counterpartID)
	if err != nil {
		h.logger.Error("Failed to load counterpart", zap.Error(err), zap.Int64("order_id", o.ID))
		return
	}

	text := fmt.Sprintf("✅ <b>Buyurtma №%d yakunlandi.</b> Xizmatdan foydalanganingiz uchun rahmat!", o.ID)
	if outcome == domain.StateCanceled {
		text = fmt.Sprintf("❌ <b>Buyurtma №%d bekor qilindi.</b>", o.ID)
	}
	h.sendHTML(ctx, b, counterpart.TelegramID, text, nil)
}

// OrderReminder implements order.Notifier: nudge the owner of an order
// nobody has claimed yet.
func (h *Handler) OrderReminder(ctx context.Context, o *domain.Order) {
	owner, err := h.userRepo.GetUserByID(ctx, o.PassengerID)
	if err != nil {
		h.logger.Error("Failed to load owner for reminder", zap.Error(err), zap.Int64("order_id", o.ID))
		return
	}

	h.sendHTML(ctx, h.tg, owner.TelegramID, fmt.Sprintf(
		"⏳ <b>Buyurtma №%d hali haydovchi kutmoqda.</b>\n\n"+
			"Dolzarb bo'lmasa, bekor qilishingiz mumkin.", o.ID),
		ownerOrderKeyboard(o.ID))
}

// OrderExpired implements order.Notifier: the order aged out unclaimed and
// was auto-canceled. The channel announcement goes away with it.
func (h *Handler) OrderExpired(ctx context.Context, o *domain.Order) {
	refreshed, err := h.orderRepo.GetOrder(ctx, o.ID)
	if err == nil {
		h.announcer.Resync(ctx, refreshed)
	}

	owner, err := h.userRepo.GetUserByID(ctx, o.PassengerID)
	if err != nil {
		h.logger.Error("Failed to load owner for expiry notice", zap.Error(err), zap.Int64("order_id", o.ID))
		return
	}

	h.sendHTML(ctx, h.tg, owner.TelegramID, fmt.Sprintf(
		"⌛️ <b>Buyurtma №%d muddati o'tib bekor qilindi.</b>\n\n"+
			"Istasangiz, yangi buyurtma berishingiz mumkin.", o.ID), nil)
}

// OrderReverted implements order.Notifier: a claim stalled out, the order
// is claimable again and the channel shows the button once more.
func (h *Handler) OrderReverted(ctx context.Context, o *domain.Order) {
	refreshed, err := h.orderRepo.GetOrder(ctx, o.ID)
	if err == nil {
		h.announcer.Resync(ctx, refreshed)
	}

	owner, err := h.userRepo.GetUserByID(ctx, o.PassengerID)
	if err != nil {
		h.logger.Error("Failed to load owner for revert notice", zap.Error(err), zap.Int64("order_id", o.ID))
		return
	}

	h.sendHTML(ctx, h.tg, owner.TelegramID, fmt.Sprintf(
		"🔄 <b>Buyurtma №%d bo'yicha haydovchi javob bermadi.</b>\n\n"+
			"Buyurtma qayta e'lon qilindi, yangi haydovchi qidirilmoqda.", o.ID), nil)
}

// isChannelMember gates claims on membership in the public channel.
func (h *Handler) isChannelMember(ctx context.Context, b *bot.Bot, userID int64) bool {
	member, err := b.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: h.cfg.ChannelID,
		UserID: userID,
	})
	if err != nil {
		h.logger.Warn("Failed to check channel membership",
			zap.Int64("telegram_id", userID), zap.Error(err))
		return false
	}

	switch member.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator, models.ChatMemberTypeMember:
		return true
	default:
		return false
	}
}

func claimOrderID(data string) (int64, bool) {
	for _, prefix := range []string{"contact_passenger_", "contact_sender_", "accept_order_"} {
		if id, ok := parseCallbackID(data, prefix); ok {
			return id, true
		}
	}
	return 0, false
}

func ownerOrderKeyboard(orderID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Yakunlash", CallbackData: fmt.Sprintf("complete_order_%d", orderID)},
				{Text: "❌ Bekor qilish", CallbackData: fmt.Sprintf("cancel_order_%d", orderID)},
			},
		},
	}
}

func driverOrderKeyboard(orderID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Yakunlash", CallbackData: fmt.Sprintf("complete_order_%d", orderID)},
				{Text: "❌ Voz kechish", CallbackData: fmt.Sprintf("cancel_order_%d", orderID)},
			},
		},
	}
}
