package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"intake/internal/config"
	"intake/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a row with the same natural key exists.
	ErrDuplicate = errors.New("record already exists")
	// ErrStaleStatus is returned when a conditional status update matched no
	// row because the stored status was no longer the expected one.
	ErrStaleStatus = errors.New("status changed concurrently")
)

// ApplicationFilter narrows application listings. A non-zero CreatedSince
// keeps rows created at or after it.
type ApplicationFilter struct {
	Status       model.ApplicationStatus
	PartnerType  model.PartnerType
	Search       string
	CreatedSince time.Time
	Page         int
	Limit        int
}

// ContactFilter narrows contact listings.
type ContactFilter struct {
	Status   model.ContactStatus
	Subject  string
	Priority     string
	Search       string
	CreatedSince time.Time
	Page         int
	Limit        int
}

// Service is the persistence collaborator used by the rest of the service.
type Service interface {
	GetDB() *gorm.DB
	Ping(ctx context.Context) error

	CreateApplication(ctx context.Context, app *model.PartnerApplication) error
	GetApplication(ctx context.Context, id string) (*model.PartnerApplication, error)
	FindApplicationByIDAndEmail(ctx context.Context, id, email string) (*model.PartnerApplication, error)
	HasOpenApplication(ctx context.Context, email string, partnerType model.PartnerType) (bool, error)
	UpdateApplicationStatus(ctx context.Context, app *model.PartnerApplication, expected model.ApplicationStatus) error
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]model.PartnerApplication, int64, error)
	CreateDocument(ctx context.Context, doc *model.PartnerDocument) error
	ListDocuments(ctx context.Context, applicationID string) ([]model.PartnerDocument, error)

	CreateContactMessage(ctx context.Context, msg *model.ContactMessage) error
	GetContactMessage(ctx context.Context, id string) (*model.ContactMessage, error)
	UpdateContactMessage(ctx context.Context, msg *model.ContactMessage, expected model.ContactStatus) error
	ListContactMessages(ctx context.Context, filter ContactFilter) ([]model.ContactMessage, int64, error)
	AddContactResponse(ctx context.Context, resp *model.ContactResponse) error

	CreateReviewer(ctx context.Context, reviewer *model.Reviewer) error
	FindReviewerByUsername(ctx context.Context, username string) (*model.Reviewer, error)
	GetReviewer(ctx context.Context, id uint) (*model.Reviewer, error)

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
}

type gormService struct {
	db *gorm.DB
}

// NewService opens the configured database, migrates the schema and returns a Service.
func NewService(cfg config.DatabaseConfig) (Service, error) {
	database, err := Init(cfg)
	if err != nil {
		return nil, err
	}
	return &gormService{db: database}, nil
}

// Init initializes the database connection based on the provided configuration.
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Type == "sqlite" {
		// One connection keeps in-memory databases shared and serializes writers.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&model.Reviewer{},
		&model.PartnerApplication{},
		&model.PartnerDocument{},
		&model.ContactMessage{},
		&model.ContactResponse{},
		&model.ContactAnalytics{},
		&model.PartnerAnalytics{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}

func (s *gormService) GetDB() *gorm.DB {
	return s.db
}

func (s *gormService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func pageBounds(page, limit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return (page - 1) * limit, limit
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// CreateApplication inserts a new application row.
func (s *gormService) CreateApplication(ctx context.Context, app *model.PartnerApplication) error {
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// GetApplication loads an application with its documents.
func (s *gormService) GetApplication(ctx context.Context, id string) (*model.PartnerApplication, error) {
	var app model.PartnerApplication
	err := s.db.WithContext(ctx).Preload("Documents").Where("id = ?", id).First(&app).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &app, nil
}

// FindApplicationByIDAndEmail matches both the identifier and the normalized email.
func (s *gormService) FindApplicationByIDAndEmail(ctx context.Context, id, email string) (*model.PartnerApplication, error) {
	var app model.PartnerApplication
	err := s.db.WithContext(ctx).
		Where("id = ? AND LOWER(email) = ?", id, strings.ToLower(email)).
		First(&app).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &app, nil
}

// HasOpenApplication reports whether email already has a non-terminal
// application of the same partner type.
func (s *gormService) HasOpenApplication(ctx context.Context, email string, partnerType model.PartnerType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.PartnerApplication{}).
		Where("LOWER(email) = ? AND partner_type = ?", strings.ToLower(email), partnerType).
		Where("status NOT IN ?", []model.ApplicationStatus{model.ApplicationStatusApproved, model.ApplicationStatusRejected}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing applications: %w", err)
	}
	return count > 0, nil
}

// UpdateApplicationStatus writes the lifecycle fields of app only if the
// stored status still equals expected.
func (s *gormService) UpdateApplicationStatus(ctx context.Context, app *model.PartnerApplication, expected model.ApplicationStatus) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&model.PartnerApplication{}).
		Where("id = ? AND status = ?", app.ID, expected).
		Updates(map[string]any{
			"status":           app.Status,
			"reviewer_id":      app.ReviewerID,
			"review_notes":     app.ReviewNotes,
			"rejection_reason": app.RejectionReason,
			"reviewed_at":      app.ReviewedAt,
			"approved_at":      app.ApprovedAt,
			"rejected_at":      app.RejectedAt,
			"updated_at":       now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update application %s: %w", app.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	app.UpdatedAt = now
	return nil
}

// ListApplications returns one page of applications, newest first, and the total match count.
func (s *gormService) ListApplications(ctx context.Context, filter ApplicationFilter) ([]model.PartnerApplication, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.PartnerApplication{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PartnerType != "" {
		query = query.Where("partner_type = ?", filter.PartnerType)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(contact_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(business_name) LIKE ? OR LOWER(city) LIKE ?",
			like, like, like, like)
	}
	if !filter.CreatedSince.IsZero() {
		query = query.Where("created_at >= ?", filter.CreatedSince.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	offset, limit := pageBounds(filter.Page, filter.Limit)
	var apps []model.PartnerApplication
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, total, nil
}

// CreateDocument inserts document metadata. A second document of the same
// type for one application returns ErrDuplicate.
func (s *gormService) CreateDocument(ctx context.Context, doc *model.PartnerDocument) error {
	var existing int64
	err := s.db.WithContext(ctx).Model(&model.PartnerDocument{}).
		Where("application_id = ? AND document_type = ?", doc.ApplicationID, doc.DocumentType).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("failed to check existing documents: %w", err)
	}
	if existing > 0 {
		return ErrDuplicate
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// ListDocuments returns the documents of one application, oldest first.
func (s *gormService) ListDocuments(ctx context.Context, applicationID string) ([]model.PartnerDocument, error) {
	var docs []model.PartnerDocument
	err := s.db.WithContext(ctx).Where("application_id = ?", applicationID).
		Order("uploaded_at asc").Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// CreateContactMessage inserts a contact form submission.
func (s *gormService) CreateContactMessage(ctx context.Context, msg *model.ContactMessage) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

// GetContactMessage loads a contact message with its responses.
func (s *gormService) GetContactMessage(ctx context.Context, id string) (*model.ContactMessage, error) {
	var msg model.ContactMessage
	err := s.db.WithContext(ctx).
		Preload("Responses", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at desc") }).
		Where("id = ?", id).First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// UpdateContactMessage writes the workflow fields of msg only if the stored
// status still equals expected.
func (s *gormService) UpdateContactMessage(ctx context.Context, msg *model.ContactMessage, expected model.ContactStatus) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&model.ContactMessage{}).
		Where("id = ? AND status = ?", msg.ID, expected).
		Updates(map[string]any{
			"status":         msg.Status,
			"priority":       msg.Priority,
			"assigned_to_id": msg.AssignedToID,
			"resolved_at":    msg.ResolvedAt,
			"updated_at":     now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update contact message %s: %w", msg.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	msg.UpdatedAt = now
	return nil
}

// ListContactMessages returns one page of contact messages, newest first.
func (s *gormService) ListContactMessages(ctx context.Context, filter ContactFilter) ([]model.ContactMessage, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.ContactMessage{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ? OR LOWER(message) LIKE ?",
			like, like, like, like)
	}
	if !filter.CreatedSince.IsZero() {
		query = query.Where("created_at >= ?", filter.CreatedSince.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contact messages: %w", err)
	}

	offset, limit := pageBounds(filter.Page, filter.Limit)
	var msgs []model.ContactMessage
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&msgs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list contact messages: %w", err)
	}
	return msgs, total, nil
}

// AddContactResponse stores a reviewer reply and moves a new message to
// in_progress in the same transaction.
func (s *gormService) AddContactResponse(ctx context.Context, resp *model.ContactResponse) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(resp).Error; err != nil {
			return fmt.Errorf("failed to create contact response: %w", err)
		}
		err := tx.Model(&model.ContactMessage{}).
			Where("id = ? AND status = ?", resp.ContactMessageID, model.ContactStatusNew).
			Updates(map[string]any{
				"status":     model.ContactStatusInProgress,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update contact message %s: %w", resp.ContactMessageID, err)
		}
		return nil
	})
}

// CreateReviewer inserts a reviewer account.
func (s *gormService) CreateReviewer(ctx context.Context, reviewer *model.Reviewer) error {
	if err := s.db.WithContext(ctx).Create(reviewer).Error; err != nil {
		return fmt.Errorf("failed to create reviewer: %w", err)
	}
	return nil
}

// FindReviewerByUsername looks up an active or inactive reviewer by username.
func (s *gormService) FindReviewerByUsername(ctx context.Context, username string) (*model.Reviewer, error) {
	var reviewer model.Reviewer
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&reviewer).Error; err != nil {
		return nil, notFound(err)
	}
	return &reviewer, nil
}

// GetReviewer loads a reviewer by primary key.
func (s *gormService) GetReviewer(ctx context.Context, id uint) (*model.Reviewer, error) {
	var reviewer model.Reviewer
	if err := s.db.WithContext(ctx).First(&reviewer, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &reviewer, nil
}

// ContactRollup computes the contact metrics for one UTC day.
func (s *gormService) ContactRollup(ctx context.Context, day time.Time) (*model.ContactAnalytics, error) {
	start, end := dayBounds(day)
	q := s.db.WithContext(ctx).Model(&model.ContactMessage{})
	row := &model.ContactAnalytics{Date: start.Format(model.DateLayout)}

	if err := q.Session(&gorm.Session{}).Where("created_at >= ? AND created_at < ?", start, end).
		Count(&row.TotalMessages).Error; err != nil {
		return nil, fmt.Errorf("failed to count contact messages: %w", err)
	}
	if err := q.Session(&gorm.Session{}).Where("created_at >= ? AND created_at < ? AND status = ?", start, end, model.ContactStatusNew).
		Count(&row.NewMessages).Error; err != nil {
		return nil, fmt.Errorf("failed to count new contact messages: %w", err)
	}

	var resolved []model.ContactMessage
	if err := s.db.WithContext(ctx).Select("created_at", "resolved_at").
		Where("resolved_at >= ? AND resolved_at < ?", start, end).
		Find(&resolved).Error; err != nil {
		return nil, fmt.Errorf("failed to load resolved contact messages: %w", err)
	}
	row.ResolvedMessages = int64(len(resolved))
	row.AvgResponseTimeHours = avgResponseHours(resolved)
	return row, nil
}

func avgResponseHours(msgs []model.ContactMessage) float64 {
	if len(msgs) == 0 {
		return 0
	}
	var total time.Duration
	for _, m := range msgs {
		if m.ResolvedAt != nil {
			total += m.ResolvedAt.Sub(m.CreatedAt)
		}
	}
	hours := total.Hours() / float64(len(msgs))
	return float64(int64(hours*100+0.5)) / 100
}

// PartnerRollup computes the application metrics for one UTC day.
func (s *gormService) PartnerRollup(ctx context.Context, day time.Time) (*model.PartnerAnalytics, error) {
	start, end := dayBounds(day)
	base := s.db.WithContext(ctx).Model(&model.PartnerApplication{})
	row := &model.PartnerAnalytics{Date: start.Format(model.DateLayout)}

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&row.TotalApplications, "created_at >= ? AND created_at < ?", []any{start, end}},
		{&row.PendingApplications, "status = ?", []any{model.ApplicationStatusPending}},
		{&row.ApprovedApplications, "approved_at >= ? AND approved_at < ?", []any{start, end}},
		{&row.RejectedApplications, "rejected_at >= ? AND rejected_at < ?", []any{start, end}},
		{&row.RestaurantApplications, "created_at >= ? AND created_at < ? AND partner_type = ?", []any{start, end, model.PartnerTypeRestaurant}},
		{&row.DeliveryApplications, "created_at >= ? AND created_at < ? AND partner_type = ?", []any{start, end, model.PartnerTypeDeliveryAgent}},
		{&row.InvestorApplications, "created_at >= ? AND created_at < ? AND partner_type = ?", []any{start, end, model.PartnerTypeInvestor}},
	}
	for _, c := range counts {
		if err := base.Session(&gorm.Session{}).Where(c.query, c.args...).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to compute partner rollup: %w", err)
		}
	}
	return row, nil
}

// UpsertContactAnalytics inserts or replaces the rollup for row.Date.
func (s *gormService) UpsertContactAnalytics(ctx context.Context, row *model.ContactAnalytics) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_messages", "new_messages", "resolved_messages", "avg_response_time_hours"}),
	}).Create(row).Error
}

// UpsertPartnerAnalytics inserts or replaces the rollup for row.Date.
func (s *gormService) UpsertPartnerAnalytics(ctx context.Context, row *model.PartnerAnalytics) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_applications", "pending_applications", "approved_applications", "rejected_applications",
			"restaurant_applications", "delivery_applications", "investor_applications",
		}),
	}).Create(row).Error
}

// ListContactAnalytics returns rollups on or after since, newest first.
func (s *gormService) ListContactAnalytics(ctx context.Context, since time.Time) ([]model.ContactAnalytics, error) {
	var rows []model.ContactAnalytics
	err := s.db.WithContext(ctx).Where("date >= ?", since.UTC().Format(model.DateLayout)).
		Order("date desc").Find(&rows).Error
	return rows, err
}

// ListPartnerAnalytics returns rollups on or after since, newest first.
func (s *gormService) ListPartnerAnalytics(ctx context.Context, since time.Time) ([]model.PartnerAnalytics, error) {
	var rows []model.PartnerAnalytics
	err := s.db.WithContext(ctx).Where("date >= ?", since.UTC().Format(model.DateLayout)).
		Order("date desc").Find(&rows).Error
	return rows, err
}

var groupableApplicationColumns = map[string]bool{"status": true, "partner_type": true}
var groupableContactColumns = map[string]bool{"status": true, "subject": true, "priority": true}

// CountApplicationsBy groups applications by status or partner_type.
func (s *gormService) CountApplicationsBy(ctx context.Context, column string) (map[string]int64, error) {
	if !groupableApplicationColumns[column] {
		return nil, fmt.Errorf("cannot group applications by %q", column)
	}
	return s.countBy(ctx, &model.PartnerApplication{}, column)
}

// CountContactsBy groups contact messages by status, subject or priority.
func (s *gormService) CountContactsBy(ctx context.Context, column string) (map[string]int64, error) {
	if !groupableContactColumns[column] {
		return nil, fmt.Errorf("cannot group contact messages by %q", column)
	}
	return s.countBy(ctx, &model.ContactMessage{}, column)
}

func (s *gormService) countBy(ctx context.Context, table any, column string) (map[string]int64, error) {
	var rows []struct {
		GroupKey string
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(table).
		Select(column + " AS group_key, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group by %s: %w", column, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Total
	}
	return out, nil
}

// CountApplicationsCreated counts applications created in [from, to). A zero
// to leaves the range open.
func (s *gormService) CountApplicationsCreated(ctx context.Context, from, to time.Time) (int64, error) {
	return s.countCreated(ctx, &model.PartnerApplication{}, from, to)
}

// CountContactsCreated counts contact messages created in [from, to). A zero
// to leaves the range open.
func (s *gormService) CountContactsCreated(ctx context.Context, from, to time.Time) (int64, error) {
	return s.countCreated(ctx, &model.ContactMessage{}, from, to)
}

func (s *gormService) countCreated(ctx context.Context, table any, from, to time.Time) (int64, error) {
	query := s.db.WithContext(ctx).Model(table).Where("created_at >= ?", from.UTC())
	if !to.IsZero() {
		query = query.Where("created_at < ?", to.UTC())
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}
