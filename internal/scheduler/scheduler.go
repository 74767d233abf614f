package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"intake/internal/analytics"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultSpec runs the rollup once a day at midnight.
	DefaultSpec = "@daily"
	// DefaultReportSpec sends the daily report at 07:00 UTC.
	DefaultReportSpec = "0 7 * * *"
)

// Generator computes the rollups for one day. *analytics.Service satisfies it.
type Generator interface {
	GenerateAll(ctx context.Context, day time.Time) error
}

// Reporter builds the daily report. *analytics.Service satisfies it.
type Reporter interface {
	DailyReport(ctx context.Context, day time.Time) (*analytics.DailyReport, error)
}

// ReportMailer delivers the daily report. *notify.EmailNotifier satisfies it.
type ReportMailer interface {
	SendDailyReport(ctx context.Context, report *analytics.DailyReport) error
}

type Scheduler struct {
	generator  Generator
	spec       string
	reporter   Reporter
	mailer     ReportMailer
	reportSpec string
	logger     *slog.Logger
	c          *cron.Cron
	now        func() time.Time
}

func NewScheduler(generator Generator, spec string, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		generator: generator,
		spec:      spec,
		logger:    logger.With("component", "scheduler"),
		c:         cron.New(cron.WithLocation(time.UTC)),
		now:       time.Now,
	}
}

// EnableDailyReport adds the daily report job. It must be called before Start.
func (s *Scheduler) EnableDailyReport(reporter Reporter, mailer ReportMailer, spec string) {
	if spec == "" {
		spec = DefaultReportSpec
	}
	s.reporter = reporter
	s.mailer = mailer
	s.reportSpec = spec
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.c.AddFunc(s.spec, s.RunAnalytics); err != nil {
		return fmt.Errorf("error scheduling analytics job %q: %w", s.spec, err)
	}
	if s.mailer != nil {
		if _, err := s.c.AddFunc(s.reportSpec, s.RunReport); err != nil {
			return fmt.Errorf("error scheduling report job %q: %w", s.reportSpec, err)
		}
	}
	s.c.Start()
	s.logger.Info("Scheduler started", "analytics_spec", s.spec, "report_spec", s.reportSpec)
	return nil
}

// RunReport sends the report for yesterday.
func (s *Scheduler) RunReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	day := s.now().UTC().AddDate(0, 0, -1)
	report, err := s.reporter.DailyReport(ctx, day)
	if err != nil {
		s.logger.Error("Error building daily report", "date", day.Format("2006-01-02"), "error", err)
		return
	}
	if err := s.mailer.SendDailyReport(ctx, report); err != nil {
		s.logger.Error("Error sending daily report", "date", report.Date, "error", err)
	}
}

// RunAnalytics rolls up yesterday, which is complete, and today so far.
func (s *Scheduler) RunAnalytics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	today := s.now().UTC()
	s.logger.Info("Running daily job: generating analytics.")
	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		if err := s.generator.GenerateAll(ctx, day); err != nil {
			s.logger.Error("Error generating analytics", "date", day.Format("2006-01-02"), "error", err)
		}
	}
}

// Stop stops the runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
