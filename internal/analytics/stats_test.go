package analytics

import (
	"context"
	"testing"
	"time"

	"intake/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	now := time.Date(2024, 7, 20, 15, 0, 0, 0, time.UTC)
	svc, gdb := setup(t, now)
	ctx := context.Background()

	msgs := []model.ContactMessage{
		{Name: "a", Email: "a@x.cm", Message: "m", CreatedAt: now.Add(-time.Hour)},
		{Name: "b", Email: "b@x.cm", Message: "m", Status: model.ContactStatusInProgress, CreatedAt: now.AddDate(0, 0, -3)},
		{Name: "c", Email: "c@x.cm", Message: "m", Status: model.ContactStatusResolved, CreatedAt: now.AddDate(0, 0, -20)},
		{Name: "d", Email: "d@x.cm", Message: "m", Status: model.ContactStatusClosed, CreatedAt: now.AddDate(0, 0, -60)},
	}
	for i := range msgs {
		require.NoError(t, gdb.Create(&msgs[i]).Error)
	}
	apps := []model.PartnerApplication{
		{PartnerType: model.PartnerTypeRestaurant, ContactName: "a", Email: "a@x.cm", Phone: "1", CreatedAt: now.Add(-2 * time.Hour)},
		{PartnerType: model.PartnerTypeDeliveryAgent, ContactName: "b", Email: "b@x.cm", Phone: "1", CreatedAt: now.AddDate(0, 0, -10), Status: model.ApplicationStatusApproved},
		{PartnerType: model.PartnerTypeInvestor, ContactName: "c", Email: "c@x.cm", Phone: "1", CreatedAt: now.AddDate(0, 0, -40), Status: model.ApplicationStatusUnderReview},
	}
	for i := range apps {
		require.NoError(t, gdb.Create(&apps[i]).Error)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ContactStats{Total: 4, Today: 1, Week: 2, Month: 3, Pending: 2, Resolved: 1}, stats.ContactStats)
	assert.Equal(t, PartnerStats{
		Total: 3, Today: 1, Week: 1, Month: 2, Pending: 1, Approved: 1,
		Restaurants: 1, DeliveryAgents: 1, Investors: 1,
	}, stats.PartnerStats)
	assert.Len(t, stats.RecentActivity.Contacts, 2)
	require.Len(t, stats.RecentActivity.Partners, 1)
	assert.Equal(t, "a@x.cm", stats.RecentActivity.Partners[0].Email)
}

func TestDailyReport(t *testing.T) {
	day := time.Date(2024, 7, 19, 0, 0, 0, 0, time.UTC)
	svc, gdb := setup(t, day.AddDate(0, 0, 1))
	ctx := context.Background()

	require.NoError(t, gdb.Create(&model.ContactMessage{Name: "a", Email: "a@x.cm", Message: "m", CreatedAt: day.Add(8 * time.Hour)}).Error)
	require.NoError(t, gdb.Create(&model.ContactMessage{Name: "b", Email: "b@x.cm", Message: "m", CreatedAt: day.AddDate(0, 0, -2)}).Error)
	require.NoError(t, gdb.Create(&model.ContactMessage{Name: "c", Email: "c@x.cm", Message: "m", Status: model.ContactStatusResolved, CreatedAt: day.Add(9 * time.Hour)}).Error)
	require.NoError(t, gdb.Create(&model.PartnerApplication{
		PartnerType: model.PartnerTypeRestaurant, ContactName: "a", Email: "a@x.cm", Phone: "1", CreatedAt: day.Add(23 * time.Hour),
	}).Error)
	require.NoError(t, gdb.Create(&model.PartnerApplication{
		PartnerType: model.PartnerTypeRestaurant, ContactName: "b", Email: "b@x.cm", Phone: "1", CreatedAt: day.AddDate(0, 0, 1),
	}).Error)

	report, err := svc.DailyReport(ctx, day.Add(11*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, &DailyReport{
		Date:                "2024-07-19",
		NewContacts:         2,
		NewApplications:     1,
		PendingContacts:     2,
		PendingApplications: 2,
	}, report)
}
