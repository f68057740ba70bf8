package announcer

import (
	"context"
	"errors"
	"testing"

	"yolda/internal/domain"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessenger struct {
	sendErr error

	sent    []*bot.SendMessageParams
	edited  []*bot.EditMessageTextParams
	deleted []*bot.DeleteMessageParams

	nextMessageID int
}

func (f *fakeMessenger) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, params)
	f.nextMessageID++
	return &models.Message{ID: f.nextMessageID}, nil
}

func (f *fakeMessenger) EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.edited = append(f.edited, params)
	return &models.Message{ID: params.MessageID}, nil
}

func (f *fakeMessenger) DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error) {
	f.deleted = append(f.deleted, params)
	return true, nil
}

type fakeMessageStore struct {
	ids map[int64]*int64
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{ids: make(map[int64]*int64)}
}

func (f *fakeMessageStore) SetChannelMessageID(ctx context.Context, orderID int64, messageID *int64) error {
	f.ids[orderID] = messageID
	return nil
}

func tripOrder(state domain.State, messageID *int64) *domain.Order {
	return &domain.Order{
		ID:           7,
		Kind:         domain.KindTrip,
		FromRegion:   "Toshkent",
		FromDistrict: "Chilonzor",
		ToRegion:     "Samarqand",
		ToDistrict:   "Urgut",
		Passengers:   2,

		ChannelMessageID: messageID,
		Status:           &domain.OrderStatus{OrderID: 7, State: state},
	}
}

func TestPostPersistsMessageID(t *testing.T) {
	msgr := &fakeMessenger{}
	store := newFakeMessageStore()
	a := New(msgr, store, -100123, zap.NewNop())

	a.Post(context.Background(), tripOrder(domain.StateInitiated, nil))

	require.Len(t, msgr.sent, 1)
	assert.Equal(t, int64(-100123), msgr.sent[0].ChatID)

	kb, ok := msgr.sent[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "contact_passenger_7", kb.InlineKeyboard[0][0].CallbackData)

	require.NotNil(t, store.ids[7])
	assert.Equal(t, int64(1), *store.ids[7])
}

func TestPostFailureIsSwallowed(t *testing.T) {
	msgr := &fakeMessenger{sendErr: errors.New("telegram down")}
	store := newFakeMessageStore()
	a := New(msgr, store, -100123, zap.NewNop())

	a.Post(context.Background(), tripOrder(domain.StateInitiated, nil))

	assert.Empty(t, store.ids)
}

func TestResyncDeliveryClaimButton(t *testing.T) {
	msgr := &fakeMessenger{}
	store := newFakeMessageStore()
	a := New(msgr, store, -100123, zap.NewNop())

	msgID := int64(42)
	o := tripOrder(domain.StateInitiated, &msgID)
	o.Kind = domain.KindDelivery
	o.PackageType = domain.PackageTypeParcel
	o.PackageSize = domain.PackageSizeSmall

	a.Resync(context.Background(), o)

	require.Len(t, msgr.edited, 1)
	kb, ok := msgr.edited[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "contact_sender_7", kb.InlineKeyboard[0][0].CallbackData)
}

func TestResyncProcessingDropsButton(t *testing.T) {
	msgr := &fakeMessenger{}
	store := newFakeMessageStore()
	a := New(msgr, store, -100123, zap.NewNop())

	msgID := int64(42)
	a.Resync(context.Background(), tripOrder(domain.StateProcessing, &msgID))

	require.Len(t, msgr.edited, 1)
	assert.Equal(t, 42, msgr.edited[0].MessageID)
	assert.Nil(t, msgr.edited[0].ReplyMarkup)
}

func TestResyncCanceledDeletesMessage(t *testing.T) {
	msgr := &fakeMessenger{}
	store := newFakeMessageStore()
	a := New(msgr, store, -100123, zap.NewNop())

	msgID := int64(42)
	a.Resync(context.Background(), tripOrder(domain.StateCanceled, &msgID))

	require.Len(t, msgr.deleted, 1)
	assert.Equal(t, 42, msgr.deleted[0].MessageID)
	assert.Empty(t, msgr.edited)

	// The stored id is cleared so the message is not touched again.
	stored, ok := store.ids[7]
	require.True(t, ok)
	assert.Nil(t, stored)
}

func TestResyncWithoutMessageIsNoop(t *testing.T) {
	msgr := &fakeMessenger{}
	store := newFakeMessageStore()
	a := New(msgr, store, -100123, zap.NewNop())

	a.Resync(context.Background(), tripOrder(domain.StateCompleted, nil))

	assert.Empty(t, msgr.edited)
	assert.Empty(t, msgr.deleted)
}
