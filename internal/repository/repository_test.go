package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"yolda/internal/domain"
	"yolda/internal/order"
	"yolda/traits/database"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testRepos struct {
	db      *sql.DB
	users   *UserRepository
	regions *RegionRepository
	orders  *OrderRepository
}

func newTestRepos(t *testing.T) *testRepos {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	require.NoError(t, database.CreateTables(db, logger))

	return &testRepos{
		db:      db,
		users:   NewUserRepository(db, logger),
		regions: NewRegionRepository(db, logger),
		orders:  NewOrderRepository(db, logger),
	}
}

// seedFixtures creates a passenger, a driver and a two-region route, and
// returns a ready CreateOrderRequest for a trip between them.
func (tr *testRepos) seedFixtures(t *testing.T) (passenger, driver *domain.User, req *domain.CreateOrderRequest) {
	t.Helper()
	ctx := context.Background()

	passenger, err := tr.users.CreateUser(ctx, &domain.CreateUserRequest{
		TelegramID: 1001, FirstName: "Aziz", Role: domain.RolePassenger,
	})
	require.NoError(t, err)

	driver, err = tr.users.CreateUser(ctx, &domain.CreateUserRequest{
		TelegramID: 2002, FirstName: "Bobur", Role: domain.RoleDriver,
	})
	require.NoError(t, err)

	from, err := tr.regions.CreateRegion(ctx, "Toshkent")
	require.NoError(t, err)
	fromDistrict, err := tr.regions.CreateDistrict(ctx, from.ID, "Chilonzor")
	require.NoError(t, err)

	to, err := tr.regions.CreateRegion(ctx, "Samarqand")
	require.NoError(t, err)
	toDistrict, err := tr.regions.CreateDistrict(ctx, to.ID, "Urgut")
	require.NoError(t, err)

	req = &domain.CreateOrderRequest{
		Kind:           domain.KindTrip,
		PassengerID:    passenger.ID,
		FromRegionID:   from.ID,
		FromDistrictID: fromDistrict.ID,
		ToRegionID:     to.ID,
		ToDistrictID:   toDistrict.ID,
		Passengers:     2,
	}
	return passenger, driver, req
}

func TestCreateOrderStartsInitiated(t *testing.T) {
	tr := newTestRepos(t)
	_, _, req := tr.seedFixtures(t)
	ctx := context.Background()

	o, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, domain.KindTrip, o.Kind)
	assert.Equal(t, "Toshkent", o.FromRegion)
	assert.Equal(t, "Chilonzor", o.FromDistrict)
	assert.Equal(t, "Samarqand", o.ToRegion)
	assert.Equal(t, "Urgut", o.ToDistrict)
	assert.Nil(t, o.DriverID)
	assert.Nil(t, o.ChannelMessageID)

	require.NotNil(t, o.Status)
	assert.Equal(t, domain.StateInitiated, o.Status.State)
	assert.Nil(t, o.Status.ActorID)
}

func TestGetOrderNotFound(t *testing.T) {
	tr := newTestRepos(t)

	_, err := tr.orders.GetOrder(context.Background(), 9999)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestClaimIsConditional(t *testing.T) {
	tr := newTestRepos(t)
	_, driver, req := tr.seedFixtures(t)
	ctx := context.Background()

	o, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	ok, err := tr.orders.ClaimInitiated(ctx, o.ID, driver.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The losing claim sees zero affected rows, not an error.
	ok, err = tr.orders.ClaimInitiated(ctx, o.ID, driver.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	claimed, err := tr.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessing, claimed.Status.State)
	require.NotNil(t, claimed.DriverID)
	assert.Equal(t, driver.ID, *claimed.DriverID)
	require.NotNil(t, claimed.Status.ActorID)
	assert.Equal(t, driver.ID, *claimed.Status.ActorID)
}

func TestResolveFromRequiresExactState(t *testing.T) {
	tr := newTestRepos(t)
	_, driver, req := tr.seedFixtures(t)
	ctx := context.Background()

	o, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	// Wrong precondition: the order is initiated, not processing.
	ok, err := tr.orders.ResolveFrom(ctx, o.ID, domain.StateProcessing, domain.StateCompleted)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tr.orders.ClaimInitiated(ctx, o.ID, driver.ID)
	require.NoError(t, err)

	ok, err = tr.orders.ResolveFrom(ctx, o.ID, domain.StateProcessing, domain.StateCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := tr.orders.GetStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, status.State)
}

func TestRevertProcessingClearsDriver(t *testing.T) {
	tr := newTestRepos(t)
	_, driver, req := tr.seedFixtures(t)
	ctx := context.Background()

	o, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	_, err = tr.orders.ClaimInitiated(ctx, o.ID, driver.ID)
	require.NoError(t, err)

	ok, err := tr.orders.RevertProcessing(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	reverted, err := tr.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInitiated, reverted.Status.State)
	assert.Nil(t, reverted.DriverID)
	assert.Nil(t, reverted.Status.ActorID)

	ok, err = tr.orders.RevertProcessing(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChannelMessageIDRoundTrip(t *testing.T) {
	tr := newTestRepos(t)
	_, _, req := tr.seedFixtures(t)
	ctx := context.Background()

	o, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	msgID := int64(555)
	require.NoError(t, tr.orders.SetChannelMessageID(ctx, o.ID, &msgID))

	got, err := tr.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ChannelMessageID)
	assert.Equal(t, int64(555), *got.ChannelMessageID)

	require.NoError(t, tr.orders.SetChannelMessageID(ctx, o.ID, nil))
	got, err = tr.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ChannelMessageID)

	assert.ErrorIs(t, tr.orders.SetChannelMessageID(ctx, 9999, &msgID), order.ErrNotFound)
}

func TestListOrdersByState(t *testing.T) {
	tr := newTestRepos(t)
	_, driver, req := tr.seedFixtures(t)
	ctx := context.Background()

	first, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	second, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	_, err = tr.orders.ClaimInitiated(ctx, second.ID, driver.ID)
	require.NoError(t, err)

	pending, err := tr.orders.ListOrdersByState(ctx, domain.StateInitiated)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	processing, err := tr.orders.ListOrdersByState(ctx, domain.StateProcessing)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, second.ID, processing[0].ID)
}

func TestListUserOrdersPagination(t *testing.T) {
	tr := newTestRepos(t)
	passenger, driver, req := tr.seedFixtures(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tr.orders.CreateOrder(ctx, req)
		require.NoError(t, err)
	}

	page, total, err := tr.orders.ListUserOrders(ctx, passenger.ID, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 3)

	page, total, err = tr.orders.ListUserOrders(ctx, passenger.ID, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	// The driver has not taken any orders yet.
	page, total, err = tr.orders.ListUserOrders(ctx, driver.ID, 3, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}

func TestRegionDeleteGuard(t *testing.T) {
	tr := newTestRepos(t)
	_, _, req := tr.seedFixtures(t)
	ctx := context.Background()

	_, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	assert.ErrorIs(t, tr.regions.DeleteRegion(ctx, req.FromRegionID), ErrRegionInUse)
	assert.ErrorIs(t, tr.regions.DeleteDistrict(ctx, req.ToDistrictID), ErrRegionInUse)

	// An unreferenced region deletes cleanly, districts cascading.
	spare, err := tr.regions.CreateRegion(ctx, "Buxoro")
	require.NoError(t, err)
	_, err = tr.regions.CreateDistrict(ctx, spare.ID, "Kogon")
	require.NoError(t, err)
	require.NoError(t, tr.regions.DeleteRegion(ctx, spare.ID))

	_, err = tr.regions.GetRegion(ctx, spare.ID)
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestDuplicateNamesRejected(t *testing.T) {
	tr := newTestRepos(t)
	ctx := context.Background()

	region, err := tr.regions.CreateRegion(ctx, "Toshkent")
	require.NoError(t, err)

	_, err = tr.regions.CreateRegion(ctx, "Toshkent")
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = tr.regions.CreateDistrict(ctx, region.ID, "Chilonzor")
	require.NoError(t, err)
	_, err = tr.regions.CreateDistrict(ctx, region.ID, "Chilonzor")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestSeedFromFileOnlyWhenEmpty(t *testing.T) {
	tr := newTestRepos(t)
	ctx := context.Background()

	seeds := []regionSeed{
		{Name: "Toshkent", Districts: []string{"Chilonzor", "Yunusobod"}},
		{Name: "Samarqand", Districts: []string{"Urgut"}},
	}
	raw, err := json.Marshal(seeds)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "regions.json")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	require.NoError(t, tr.regions.SeedFromFile(ctx, path))

	regions, err := tr.regions.ListRegions(ctx)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	// Seeding again must not duplicate the directory.
	require.NoError(t, tr.regions.SeedFromFile(ctx, path))
	regions, err = tr.regions.ListRegions(ctx)
	require.NoError(t, err)
	assert.Len(t, regions, 2)

	toshkent, err := tr.regions.GetRegion(ctx, regions[regionIndex(regions, "Toshkent")].ID)
	require.NoError(t, err)
	assert.Len(t, toshkent.Districts, 2)
}

func regionIndex(regions []*domain.Region, name string) int {
	for i, r := range regions {
		if r.Name == name {
			return i
		}
	}
	return -1
}

func TestStatistics(t *testing.T) {
	tr := newTestRepos(t)
	_, driver, req := tr.seedFixtures(t)
	ctx := context.Background()

	first, err := tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	_, err = tr.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	_, err = tr.orders.ClaimInitiated(ctx, first.ID, driver.ID)
	require.NoError(t, err)
	_, err = tr.orders.ResolveFrom(ctx, first.ID, domain.StateProcessing, domain.StateCompleted)
	require.NoError(t, err)

	stats, err := tr.orders.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, int64(2), stats.TotalTrips)
	assert.Zero(t, stats.TotalDelivery)
	assert.Equal(t, int64(2), stats.TodayOrders)
	assert.Equal(t, int64(1), stats.ByState[domain.StateCompleted])
	assert.Equal(t, int64(1), stats.ByState[domain.StateInitiated])

	total, drivers, passengers, err := tr.users.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), drivers)
	assert.Equal(t, int64(1), passengers)
}

func TestUserProfileUpdates(t *testing.T) {
	tr := newTestRepos(t)
	ctx := context.Background()

	user, err := tr.users.CreateUser(ctx, &domain.CreateUserRequest{
		TelegramID: 3003, FirstName: "Dilshod", Role: domain.RolePassenger,
	})
	require.NoError(t, err)

	require.NoError(t, tr.users.UpdateProfile(ctx, user.ID, "Dilshod", "Karimov", "+998901234567"))

	updated, err := tr.users.GetUserByTelegramID(ctx, 3003)
	require.NoError(t, err)
	assert.Equal(t, "Karimov", updated.LastName)
	assert.Equal(t, "+998901234567", updated.PhoneNumber)
	assert.Equal(t, "Dilshod Karimov", updated.FullName())

	require.NoError(t, tr.users.SetRole(ctx, user.ID, domain.RoleDriver))
	updated, err = tr.users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDriver, updated.Role)

	assert.ErrorIs(t, tr.users.UpdateProfile(ctx, "missing", "a", "b", "c"), ErrUserNotFound)
	_, err = tr.users.GetUserByTelegramID(ctx, 4040)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
