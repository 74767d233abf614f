package analytics

import (
	"context"
	"time"

	"intake/internal/db"
	"intake/internal/model"
)

// recentActivityLimit caps each list of the activity feed.
const recentActivityLimit = 5

// ContactStats counts contact messages over fixed windows.
type ContactStats struct {
	Total    int64 `json:"total"`
	Today    int64 `json:"today"`
	Week     int64 `json:"week"`
	Month    int64 `json:"month"`
	Pending  int64 `json:"pending"`
	Resolved int64 `json:"resolved"`
}

// PartnerStats counts applications over fixed windows and by partner type.
type PartnerStats struct {
	Total          int64 `json:"total"`
	Today          int64 `json:"today"`
	Week           int64 `json:"week"`
	Month          int64 `json:"month"`
	Pending        int64 `json:"pending"`
	Approved       int64 `json:"approved"`
	Restaurants    int64 `json:"restaurants"`
	DeliveryAgents int64 `json:"delivery_agents"`
	Investors      int64 `json:"investors"`
}

// RecentActivity is the newest submissions of the past week.
type RecentActivity struct {
	Contacts []model.ContactMessage     `json:"contacts"`
	Partners []model.PartnerApplication `json:"partners"`
}

// Stats is the reviewer home page summary.
type Stats struct {
	ContactStats   ContactStats   `json:"contact_stats"`
	PartnerStats   PartnerStats   `json:"partner_stats"`
	RecentActivity RecentActivity `json:"recent_activity"`
}

// DailyReport is the morning digest sent to administrators.
type DailyReport struct {
	Date                string `json:"date"`
	NewContacts         int64  `json:"new_contacts"`
	NewApplications     int64  `json:"new_applications"`
	PendingContacts     int64  `json:"pending_contacts"`
	PendingApplications int64  `json:"pending_applications"`
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type window struct {
	dst  *int64
	from time.Time
}

// Stats summarises both inboxes for today, the last 7 days and the last 30 days.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	today, week, month := startOfDay(now), now.AddDate(0, 0, -7), now.AddDate(0, 0, -30)
	out := &Stats{}

	for _, w := range []window{
		{&out.ContactStats.Today, today},
		{&out.ContactStats.Week, week},
		{&out.ContactStats.Month, month},
	} {
		n, err := s.store.CountContactsCreated(ctx, w.from, time.Time{})
		if err != nil {
			return nil, err
		}
		*w.dst = n
	}
	for _, w := range []window{
		{&out.PartnerStats.Today, today},
		{&out.PartnerStats.Week, week},
		{&out.PartnerStats.Month, month},
	} {
		n, err := s.store.CountApplicationsCreated(ctx, w.from, time.Time{})
		if err != nil {
			return nil, err
		}
		*w.dst = n
	}

	contactsByStatus, err := s.store.CountContactsBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	out.ContactStats.Total = sum(contactsByStatus)
	out.ContactStats.Pending = pendingContacts(contactsByStatus)
	out.ContactStats.Resolved = contactsByStatus[string(model.ContactStatusResolved)]

	appsByStatus, err := s.store.CountApplicationsBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	appsByType, err := s.store.CountApplicationsBy(ctx, "partner_type")
	if err != nil {
		return nil, err
	}
	out.PartnerStats.Total = sum(appsByStatus)
	out.PartnerStats.Pending = appsByStatus[string(model.ApplicationStatusPending)]
	out.PartnerStats.Approved = appsByStatus[string(model.ApplicationStatusApproved)]
	out.PartnerStats.Restaurants = appsByType[string(model.PartnerTypeRestaurant)]
	out.PartnerStats.DeliveryAgents = appsByType[string(model.PartnerTypeDeliveryAgent)]
	out.PartnerStats.Investors = appsByType[string(model.PartnerTypeInvestor)]

	contacts, _, err := s.store.ListContactMessages(ctx, db.ContactFilter{CreatedSince: week, Limit: recentActivityLimit})
	if err != nil {
		return nil, err
	}
	partners, _, err := s.store.ListApplications(ctx, db.ApplicationFilter{CreatedSince: week, Limit: recentActivityLimit})
	if err != nil {
		return nil, err
	}
	out.RecentActivity = RecentActivity{Contacts: contacts, Partners: partners}
	return out, nil
}

// DailyReport counts the submissions of day and what is still waiting for a reviewer.
func (s *Service) DailyReport(ctx context.Context, day time.Time) (*DailyReport, error) {
	start := startOfDay(day)
	end := start.AddDate(0, 0, 1)
	report := &DailyReport{Date: start.Format(model.DateLayout)}

	var err error
	if report.NewContacts, err = s.store.CountContactsCreated(ctx, start, end); err != nil {
		return nil, err
	}
	if report.NewApplications, err = s.store.CountApplicationsCreated(ctx, start, end); err != nil {
		return nil, err
	}
	contactsByStatus, err := s.store.CountContactsBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	report.PendingContacts = pendingContacts(contactsByStatus)
	appsByStatus, err := s.store.CountApplicationsBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	report.PendingApplications = appsByStatus[string(model.ApplicationStatusPending)]
	return report, nil
}

func pendingContacts(byStatus map[string]int64) int64 {
	return byStatus[string(model.ContactStatusNew)] + byStatus[string(model.ContactStatusInProgress)]
}
