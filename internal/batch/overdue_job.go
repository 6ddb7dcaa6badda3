package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"library-api/internal/config"
	"library-api/internal/domain/loan"
	"library-api/internal/infrastructure/monitoring"
	"library-api/internal/notification"

	"github.com/shopspring/decimal"
)

// OverdueNotificationJob finds loans past their grace deadline and mails
// the borrowers a single reminder per run.
type OverdueNotificationJob struct {
	loanService loan.LoanService
	sender      notification.Sender
	subject     string
	graceDays   int
	dailyFine   decimal.Decimal
	logger      *slog.Logger
}

func NewOverdueNotificationJob(
	loanSvc loan.LoanService,
	sender notification.Sender,
	mailCfg config.MailConfig,
	batchCfg config.BatchConfig,
	logger *slog.Logger,
) *OverdueNotificationJob {
	if loanSvc == nil || sender == nil || logger == nil {
		panic("OverdueNotificationJob dependencies cannot be nil")
	}
	fine, err := decimal.NewFromString(batchCfg.DailyFine)
	if err != nil {
		logger.Warn("Invalid daily fine configured, fines disabled", "dailyFine", batchCfg.DailyFine, "error", err)
		fine = decimal.Zero
	}
	return &OverdueNotificationJob{
		loanService: loanSvc,
		sender:      sender,
		subject:     mailCfg.Subject,
		graceDays:   batchCfg.GraceDays,
		dailyFine:   fine,
		logger:      logger.With("job", "OverdueNotification"),
	}
}

func (j *OverdueNotificationJob) Run(ctx context.Context) error {
	startTime := time.Now()
	// Overdue is a calendar-date rule: a deadline falling on today is
	// not yet late. Run time-of-day must not leak into the comparison.
	asOf := loan.DateOf(startTime)
	j.logger.InfoContext(ctx, "Starting overdue loan notification job.", slog.Time("asOf", asOf))

	overdue, err := j.loanService.FindOverdue(ctx, asOf, j.graceDays)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to find overdue loans, aborting job.", slog.Any("error", err))
		monitoring.RecordOverdueRun("error", 0)
		return fmt.Errorf("cannot run job, failed to find overdue loans: %w", err)
	}

	if len(overdue) == 0 {
		j.logger.InfoContext(ctx, "No overdue loans found.", slog.Duration("duration", time.Since(startTime)))
		monitoring.RecordOverdueRun("success", 0)
		return nil
	}

	body := j.buildMessage(overdue, asOf)
	recipients := collectRecipients(overdue)

	if err := j.sender.Send(ctx, j.subject, body, recipients); err != nil {
		j.logger.ErrorContext(ctx, "Failed to send overdue notification.", slog.Any("error", err))
		monitoring.RecordOverdueRun("error", len(overdue))
		return fmt.Errorf("failed to send overdue notification: %w", err)
	}

	monitoring.RecordOverdueRun("success", len(overdue))
	j.logger.InfoContext(ctx, "Overdue loan notification job finished.",
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("overdue_loans", len(overdue)),
		slog.Int("recipients", len(recipients)),
	)
	return nil
}

func (j *OverdueNotificationJob) buildMessage(loans []loan.Loan, asOf time.Time) string {
	var sb strings.Builder
	sb.WriteString("The following loans are past their return deadline:\n\n")
	for _, l := range loans {
		title := ""
		if l.Book != nil {
			title = l.Book.Title
		}
		late := daysLate(l.Deadline(j.graceDays), asOf)
		fine := j.dailyFine.Mul(decimal.NewFromInt(int64(late)))
		sb.WriteString(fmt.Sprintf("- %s: %q loaned on %s, %d day(s) late, fine %s\n",
			l.Customer, title, l.LoanDate.Format("2006-01-02"), late, fine.StringFixed(2)))
	}
	sb.WriteString("\nPlease return the books to the library.\n")
	return sb.String()
}

// daysLate counts whole days between the deadline and asOf, at least 1
// for any loan already past it.
func daysLate(deadline, asOf time.Time) int {
	days := int(asOf.Sub(deadline).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func collectRecipients(loans []loan.Loan) []string {
	seen := make(map[string]struct{}, len(loans))
	recipients := make([]string, 0, len(loans))
	for _, l := range loans {
		if l.CustomerEmail == "" {
			continue
		}
		if _, ok := seen[l.CustomerEmail]; ok {
			continue
		}
		seen[l.CustomerEmail] = struct{}{}
		recipients = append(recipients, l.CustomerEmail)
	}
	return recipients
}
