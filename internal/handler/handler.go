package handler

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/config"
	"yolda/internal/announcer"
	"yolda/internal/domain"
	"yolda/internal/order"
	"yolda/internal/repository"
	"yolda/internal/session"
)

// Main menu reply keyboard labels. Message routing matches on these.
const (
	btnOrderTrip     = "🚖 Safar buyurtma qilish"
	btnOrderDelivery = "📦 Yuk jo'natish"
	btnMyOrders      = "📋 Mening buyurtmalarim"
	btnProfile       = "👤 Profil"
)

type Handler struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB

	userRepo   *repository.UserRepository
	orderRepo  *repository.OrderRepository
	regionRepo *repository.RegionRepository
	sessions   *session.Store
	machine    *order.Machine

	// Attached after the bot is constructed.
	tg        *bot.Bot
	announcer *announcer.Announcer
	scheduler *order.Scheduler
}

func NewHandler(
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	userRepo *repository.UserRepository,
	orderRepo *repository.OrderRepository,
	regionRepo *repository.RegionRepository,
	sessions *session.Store,
	machine *order.Machine,
) *Handler {
	return &Handler{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		userRepo:   userRepo,
		orderRepo:  orderRepo,
		regionRepo: regionRepo,
		sessions:   sessions,
		machine:    machine,
	}
}

// Attach wires the bot-dependent collaborators. The bot, announcer and
// scheduler are constructed after the handler, so they arrive late.
func (h *Handler) Attach(b *bot.Bot, ann *announcer.Announcer, sched *order.Scheduler) {
	h.tg = b
	h.announcer = ann
	h.scheduler = sched
}

// DefaultHandler receives every update the bot gets and routes it.
func (h *Handler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.routeCallback(ctx, b, update)
	case update.Message != nil:
		h.routeMessage(ctx, b, update)
	}
}

func (h *Handler) routeMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	switch text {
	case "/start":
		h.handleStart(ctx, b, msg)
		return
	case "/help":
		h.handleHelp(ctx, b, msg)
		return
	case "/cancel":
		h.handleCancelFlow(ctx, b, msg)
		return
	case "/admin":
		h.handleAdminCommand(ctx, b, msg)
		return
	}

	user, err := h.userRepo.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			// Any text from an unknown user restarts registration.
			h.startRegistration(ctx, b, msg)
			return
		}
		h.logger.Error("Failed to load user", zap.Error(err), zap.Int64("telegram_id", msg.From.ID))
		return
	}

	switch text {
	case btnOrderTrip:
		h.startTripFlow(ctx, b, msg.From.ID)
		return
	case btnOrderDelivery:
		h.startDeliveryFlow(ctx, b, msg.From.ID)
		return
	case btnMyOrders:
		h.showOrderHistory(ctx, b, user, msg.From.ID, 0)
		return
	case btnProfile:
		h.showProfile(ctx, b, user, msg.From.ID)
		return
	}

	// Not a menu action: the text is an answer to an active flow step.
	state, err := h.sessions.Get(ctx, msg.From.ID)
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err), zap.Int64("telegram_id", msg.From.ID))
		return
	}
	if state.Step == domain.StepNone {
		h.sendMainMenu(ctx, b, msg.From.ID, "Quyidagi menyudan tanlang 👇")
		return
	}
	h.dispatchStep(ctx, b, user, msg, state)
}

// dispatchStep continues whichever conversation flow the user is in.
func (h *Handler) dispatchStep(ctx context.Context, b *bot.Bot, user *domain.User, msg *models.Message, state *domain.UserState) {
	switch state.Step {
	case domain.StepRegisterFirstName, domain.StepRegisterLastName, domain.StepRegisterPhone:
		h.continueRegistration(ctx, b, msg, state)

	case domain.StepTripPassengers, domain.StepTripDate, domain.StepTripTime:
		h.continueTripFlow(ctx, b, user, msg, state)

	case domain.StepDeliveryWeight, domain.StepDeliveryDescription,
		domain.StepDeliveryReceiverName, domain.StepDeliveryReceiverPhone:
		h.continueDeliveryFlow(ctx, b, user, msg, state)

	case domain.StepEditFirstName, domain.StepEditLastName, domain.StepEditPhone:
		h.continueProfileEdit(ctx, b, user, msg, state)

	case domain.StepAdminRegionName, domain.StepAdminRegionRename,
		domain.StepAdminDistrictName, domain.StepAdminDistrictRename:
		h.continueAdminInput(ctx, b, msg, state)

	default:
		h.logger.Warn("Unknown session step",
			zap.String("step", state.Step),
			zap.Int64("telegram_id", msg.From.ID))
		h.clearSession(ctx, msg.From.ID)
		h.sendMainMenu(ctx, b, msg.From.ID, "Quyidagi menyudan tanlang 👇")
	}
}

func (h *Handler) routeCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	data := cb.Data

	switch {
	case strings.HasPrefix(data, "role_"):
		h.handleRoleCallback(ctx, b, cb)

	case strings.HasPrefix(data, "region_"), strings.HasPrefix(data, "district_"):
		h.handleLocationCallback(ctx, b, cb)

	case strings.HasPrefix(data, "passengers_"):
		h.handlePassengersCallback(ctx, b, cb)

	case strings.HasPrefix(data, "ptype_"), strings.HasPrefix(data, "psize_"):
		h.handlePackageCallback(ctx, b, cb)

	case data == "confirm_order":
		h.handleConfirmOrder(ctx, b, cb)
	case data == "cancel_flow":
		h.handleCancelFlowCallback(ctx, b, cb)

	case strings.HasPrefix(data, "contact_passenger_"),
		strings.HasPrefix(data, "contact_sender_"),
		strings.HasPrefix(data, "accept_order_"):
		h.handleClaimCallback(ctx, b, cb)

	case strings.HasPrefix(data, "complete_order_"):
		h.handleResolveCallback(ctx, b, cb, domain.StateCompleted)
	case strings.HasPrefix(data, "cancel_order_"):
		h.handleResolveCallback(ctx, b, cb, domain.StateCanceled)

	case strings.HasPrefix(data, "history_page_"):
		h.handleHistoryCallback(ctx, b, cb)

	case strings.HasPrefix(data, "profile_"):
		h.handleProfileCallback(ctx, b, cb)

	case strings.HasPrefix(data, "admin_"):
		h.handleAdminCallback(ctx, b, cb)

	default:
		h.logger.Warn("Unknown callback", zap.String("data", data))
		h.answerCallback(ctx, b, cb.ID, "", false)
	}
}

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, msg *models.Message) {
	h.clearSession(ctx, msg.From.ID)

	user, err := h.userRepo.GetUserByTelegramID(ctx, msg.From.ID)
	if err == repository.ErrUserNotFound {
		h.startRegistration(ctx, b, msg)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load user on /start", zap.Error(err), zap.Int64("telegram_id", msg.From.ID))
		return
	}

	h.sendMainMenu(ctx, b, msg.From.ID,
		"Assalomu alaykum, "+user.FirstName+"! 👋\nYo'lda botiga xush kelibsiz.")
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, msg *models.Message) {
	text := `ℹ️ <b>Yo'lda bot</b>

🚖 Safar buyurtma qilish va yuk jo'natish uchun quyidagi menyudan foydalaning.

• Buyurtmangiz kanalga e'lon qilinadi, haydovchi topilganda sizga xabar keladi.
• Buyurtmani istalgan vaqtda yakunlashingiz yoki bekor qilishingiz mumkin.
• /cancel - joriy amalni to'xtatish`

	h.sendHTML(ctx, b, msg.From.ID, text, nil)
}

func (h *Handler) handleCancelFlow(ctx context.Context, b *bot.Bot, msg *models.Message) {
	h.clearSession(ctx, msg.From.ID)
	h.sendMainMenu(ctx, b, msg.From.ID, "Amal bekor qilindi.")
}

func (h *Handler) handleCancelFlowCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	h.answerCallback(ctx, b, cb.ID, "Bekor qilindi", false)
	h.clearSession(ctx, cb.From.ID)
	h.sendMainMenu(ctx, b, cb.From.ID, "Amal bekor qilindi.")
}

// sendMainMenu shows the persistent reply keyboard.
func (h *Handler) sendMainMenu(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	keyboard := &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: btnOrderTrip}, {Text: btnOrderDelivery}},
			{{Text: btnMyOrders}, {Text: btnProfile}},
		},
		ResizeKeyboard: true,
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		h.logger.Error("Failed to send main menu", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *Handler) sendHTML(ctx context.Context, b *bot.Bot, chatID int64, text string, keyboard models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *Handler) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.logger.Error("Failed to answer callback", zap.Error(err))
	}
}

func (h *Handler) saveSession(ctx context.Context, telegramID int64, state *domain.UserState) {
	if err := h.sessions.Set(ctx, telegramID, state); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err), zap.Int64("telegram_id", telegramID))
	}
}

func (h *Handler) clearSession(ctx context.Context, telegramID int64) {
	if err := h.sessions.Clear(ctx, telegramID); err != nil {
		h.logger.Error("Failed to clear session", zap.Error(err), zap.Int64("telegram_id", telegramID))
	}
}

// parseCallbackID extracts the trailing numeric id from callback data like
// "complete_order_42".
func parseCallbackID(data, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(data, prefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
