// Package analytics computes daily rollups and dashboard summaries.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"intake/internal/db"
	"intake/internal/model"
)

// recentDays is how far back dashboards look.
const recentDays = 30

// Store is the persistence analytics needs. db.Service satisfies it.
type Store interface {
	ContactRollup(ctx context.Context, day time.Time) (*model.ContactAnalytics, error)
	PartnerRollup(ctx context.Context, day time.Time) (*model.PartnerAnalytics, error)
	UpsertContactAnalytics(ctx context.Context, row *model.ContactAnalytics) error
	UpsertPartnerAnalytics(ctx context.Context, row *model.PartnerAnalytics) error
	ListContactAnalytics(ctx context.Context, since time.Time) ([]model.ContactAnalytics, error)
	ListPartnerAnalytics(ctx context.Context, since time.Time) ([]model.PartnerAnalytics, error)
	CountApplicationsBy(ctx context.Context, column string) (map[string]int64, error)
	CountContactsBy(ctx context.Context, column string) (map[string]int64, error)
	CountApplicationsCreated(ctx context.Context, from, to time.Time) (int64, error)
	CountContactsCreated(ctx context.Context, from, to time.Time) (int64, error)
	ListApplications(ctx context.Context, filter db.ApplicationFilter) ([]model.PartnerApplication, int64, error)
	ListContactMessages(ctx context.Context, filter db.ContactFilter) ([]model.ContactMessage, int64, error)
}

// ContactSummary is the headline of the contact dashboard.
type ContactSummary struct {
	TotalMessages        int64   `json:"total_messages"`
	PendingMessages      int64   `json:"pending_messages"`
	AvgResponseTimeHours float64 `json:"avg_response_time_hours"`
	MessagesToday        int64   `json:"messages_today"`
}

// ContactDashboard is returned by the contact analytics endpoint.
type ContactDashboard struct {
	Summary           ContactSummary           `json:"summary"`
	RecentAnalytics   []model.ContactAnalytics `json:"recent_analytics"`
	MessagesBySubject map[string]int64         `json:"messages_by_subject"`
	MessagesByStatus  map[string]int64         `json:"messages_by_status"`
}

// PartnerSummary is the headline of the partner dashboard.
type PartnerSummary struct {
	TotalApplications    int64   `json:"total_applications"`
	PendingApplications  int64   `json:"pending_applications"`
	ApprovedApplications int64   `json:"approved_applications"`
	ApprovalRate         float64 `json:"approval_rate"`
	ApplicationsToday    int64   `json:"applications_today"`
}

// PartnerDashboard is returned by the partner analytics endpoint.
type PartnerDashboard struct {
	Summary              PartnerSummary           `json:"summary"`
	RecentAnalytics      []model.PartnerAnalytics `json:"recent_analytics"`
	ApplicationsByType   map[string]int64         `json:"applications_by_type"`
	ApplicationsByStatus map[string]int64         `json:"applications_by_status"`
}

// Service generates and reads analytics.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an analytics Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger.With("component", "analytics"), now: time.Now}
}

// GenerateContact computes and stores the contact rollup for day.
func (s *Service) GenerateContact(ctx context.Context, day time.Time) (*model.ContactAnalytics, error) {
	row, err := s.store.ContactRollup(ctx, day)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertContactAnalytics(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to store contact analytics for %s: %w", row.Date, err)
	}
	return row, nil
}

// GeneratePartner computes and stores the partner rollup for day.
func (s *Service) GeneratePartner(ctx context.Context, day time.Time) (*model.PartnerAnalytics, error) {
	row, err := s.store.PartnerRollup(ctx, day)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertPartnerAnalytics(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to store partner analytics for %s: %w", row.Date, err)
	}
	return row, nil
}

// GenerateAll runs both rollups for day; both are attempted.
func (s *Service) GenerateAll(ctx context.Context, day time.Time) error {
	_, cerr := s.GenerateContact(ctx, day)
	if cerr != nil {
		s.logger.Error("Failed to generate contact analytics", "date", day.Format(model.DateLayout), "error", cerr)
	}
	_, perr := s.GeneratePartner(ctx, day)
	if perr != nil {
		s.logger.Error("Failed to generate partner analytics", "date", day.Format(model.DateLayout), "error", perr)
	}
	return errors.Join(cerr, perr)
}

// ContactDashboard refreshes today's rollup and summarises contact activity.
func (s *Service) ContactDashboard(ctx context.Context) (*ContactDashboard, error) {
	today := s.now().UTC()
	current, err := s.GenerateContact(ctx, today)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListContactAnalytics(ctx, today.AddDate(0, 0, -recentDays))
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.CountContactsBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	bySubject, err := s.store.CountContactsBy(ctx, "subject")
	if err != nil {
		return nil, err
	}

	return &ContactDashboard{
		Summary: ContactSummary{
			TotalMessages:        sum(byStatus),
			PendingMessages:      byStatus[string(model.ContactStatusNew)] + byStatus[string(model.ContactStatusInProgress)],
			AvgResponseTimeHours: weightedResponseHours(recent),
			MessagesToday:        current.TotalMessages,
		},
		RecentAnalytics:   recent,
		MessagesBySubject: bySubject,
		MessagesByStatus:  byStatus,
	}, nil
}

// PartnerDashboard refreshes today's rollup and summarises applications.
func (s *Service) PartnerDashboard(ctx context.Context) (*PartnerDashboard, error) {
	today := s.now().UTC()
	current, err := s.GeneratePartner(ctx, today)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListPartnerAnalytics(ctx, today.AddDate(0, 0, -recentDays))
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.CountApplicationsBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	byType, err := s.store.CountApplicationsBy(ctx, "partner_type")
	if err != nil {
		return nil, err
	}

	total := sum(byStatus)
	approved := byStatus[string(model.ApplicationStatusApproved)]
	return &PartnerDashboard{
		Summary: PartnerSummary{
			TotalApplications:    total,
			PendingApplications:  byStatus[string(model.ApplicationStatusPending)],
			ApprovedApplications: approved,
			ApprovalRate:         percent(approved, total),
			ApplicationsToday:    current.TotalApplications,
		},
		RecentAnalytics:      recent,
		ApplicationsByType:   byType,
		ApplicationsByStatus: byStatus,
	}, nil
}

func sum(m map[string]int64) int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

// weightedResponseHours averages daily response times by resolved count.
func weightedResponseHours(rows []model.ContactAnalytics) float64 {
	var hours float64
	var resolved int64
	for _, r := range rows {
		hours += r.AvgResponseTimeHours * float64(r.ResolvedMessages)
		resolved += r.ResolvedMessages
	}
	if resolved == 0 {
		return 0
	}
	return math.Round(hours/float64(resolved)*100) / 100
}
