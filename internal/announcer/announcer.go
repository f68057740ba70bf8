package announcer

import (
	"context"
	"fmt"

	"yolda/internal/domain"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Messenger is the slice of the Telegram API the announcer needs. *bot.Bot
// satisfies it; tests substitute a recorder.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// MessageStore persists the channel message id on the order row so the
// announcement survives restarts.
type MessageStore interface {
	SetChannelMessageID(ctx context.Context, orderID int64, messageID *int64) error
}

// Announcer keeps the public channel in sync with order state. Every
// failure here is logged and swallowed: the channel is a projection of
// persisted state, never the other way around, and a Telegram outage must
// not fail an order operation.
type Announcer struct {
	messenger Messenger
	store     MessageStore
	channelID int64
	logger    *zap.Logger
}

func New(messenger Messenger, store MessageStore, channelID int64, logger *zap.Logger) *Announcer {
	return &Announcer{
		messenger: messenger,
		store:     store,
		channelID: channelID,
		logger:    logger,
	}
}

// Post publishes a fresh order to the channel with its claim button and
// records the resulting message id.
func (a *Announcer) Post(ctx context.Context, o *domain.Order) {
	msg, err := a.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      a.channelID,
		Text:        renderOrder(o),
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: claimKeyboard(o),
	})
	if err != nil {
		a.logger.Error("failed to post order to channel",
			zap.Int64("order_id", o.ID), zap.Error(err))
		return
	}

	messageID := int64(msg.ID)
	if err := a.store.SetChannelMessageID(ctx, o.ID, &messageID); err != nil {
		a.logger.Error("failed to persist channel message id",
			zap.Int64("order_id", o.ID),
			zap.Int64("message_id", messageID),
			zap.Error(err))
		return
	}

	a.logger.Info("order posted to channel",
		zap.Int64("order_id", o.ID),
		zap.Int64("message_id", messageID))
}

// Resync brings the channel message in line with the order's current
// state: the claim button exists only while the order is claimable, a
// canceled order's announcement is removed outright, and terminal outcomes
// are shown as plain text.
func (a *Announcer) Resync(ctx context.Context, o *domain.Order) {
	if o.ChannelMessageID == nil || o.Status == nil {
		return
	}
	messageID := *o.ChannelMessageID

	if o.Status.State == domain.StateCanceled {
		if _, err := a.messenger.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    a.channelID,
			MessageID: int(messageID),
		}); err != nil {
			a.logger.Error("failed to delete channel message",
				zap.Int64("order_id", o.ID),
				zap.Int64("message_id", messageID),
				zap.Error(err))
			return
		}
		if err := a.store.SetChannelMessageID(ctx, o.ID, nil); err != nil {
			a.logger.Error("failed to clear channel message id",
				zap.Int64("order_id", o.ID), zap.Error(err))
		}
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    a.channelID,
		MessageID: int(messageID),
		Text:      renderOrder(o),
		ParseMode: models.ParseModeHTML,
	}
	if o.Status.State == domain.StateInitiated {
		params.ReplyMarkup = claimKeyboard(o)
	}

	if _, err := a.messenger.EditMessageText(ctx, params); err != nil {
		a.logger.Error("failed to update channel message",
			zap.Int64("order_id", o.ID),
			zap.Int64("message_id", messageID),
			zap.String("state", string(o.Status.State)),
			zap.Error(err))
		return
	}

	a.logger.Info("channel message updated",
		zap.Int64("order_id", o.ID),
		zap.String("state", string(o.Status.State)))
}

func claimKeyboard(o *domain.Order) *models.InlineKeyboardMarkup {
	action := "contact_passenger"
	label := "🚖 Yo'lovchi bilan bog'lanish"
	if o.Kind == domain.KindDelivery {
		action = "contact_sender"
		label = "📦 Jo'natuvchi bilan bog'lanish"
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: label, CallbackData: fmt.Sprintf("%s_%d", action, o.ID)},
			},
		},
	}
}

func renderOrder(o *domain.Order) string {
	var text string
	if o.Kind == domain.KindTrip {
		text = fmt.Sprintf(
			"🚖 <b>Yangi safar</b>\n\n"+
				"📍 <b>Qayerdan:</b> %s, %s\n"+
				"🏁 <b>Qayerga:</b> %s, %s\n"+
				"👥 <b>Yo'lovchilar:</b> %d",
			o.FromRegion, o.FromDistrict,
			o.ToRegion, o.ToDistrict,
			o.Passengers,
		)
		if o.DepartureTime != nil {
			text += fmt.Sprintf("\n🕒 <b>Jo'nash vaqti:</b> %s", o.DepartureTime.Format("02.01.2006 15:04"))
		}
	} else {
		text = fmt.Sprintf(
			"📦 <b>Yangi yuk</b>\n\n"+
				"📍 <b>Qayerdan:</b> %s, %s\n"+
				"🏁 <b>Qayerga:</b> %s, %s\n"+
				"📋 <b>Turi:</b> %s\n"+
				"📏 <b>Hajmi:</b> %s",
			o.FromRegion, o.FromDistrict,
			o.ToRegion, o.ToDistrict,
			packageTypeLabel(o.PackageType),
			packageSizeLabel(o.PackageSize),
		)
		if o.PackageWeight != nil {
			text += fmt.Sprintf("\n⚖️ <b>Og'irligi:</b> %.1f kg", *o.PackageWeight)
		}
		if o.PackageDescription != "" {
			text += fmt.Sprintf("\n💬 <b>Izoh:</b> %s", o.PackageDescription)
		}
	}

	if o.Status != nil {
		switch o.Status.State {
		case domain.StateProcessing:
			text += "\n\n🔄 Haydovchi topildi, kelishilmoqda..."
		case domain.StateCompleted:
			text += "\n\n✅ <b>Buyurtma bajarildi</b>"
		case domain.StateFailed:
			text += "\n\n❌ <b>Buyurtma amalga oshmadi</b>"
		}
	}

	return text
}

func packageTypeLabel(t string) string {
	labels := map[string]string{
		domain.PackageTypeDocument: "Hujjat",
		domain.PackageTypeParcel:   "Posilka",
		domain.PackageTypeFragile:  "Mo'rt yuk",
		domain.PackageTypeValuable: "Qimmatbaho yuk",
		domain.PackageTypeOther:    "Boshqa",
	}
	if label, ok := labels[t]; ok {
		return label
	}
	return t
}

func packageSizeLabel(s string) string {
	labels := map[string]string{
		domain.PackageSizeSmall:      "Kichik",
		domain.PackageSizeMedium:     "O'rtacha",
		domain.PackageSizeLarge:      "Katta",
		domain.PackageSizeExtraLarge: "Juda katta",
	}
	if label, ok := labels[s]; ok {
		return label
	}
	return s
}
