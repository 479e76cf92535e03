package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

// SMTPNotifier emails the submitting user when their scan permanently
// fails. An empty host disables sending, so deployments without an SMTP
// relay can leave it unconfigured.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail string, job *entity.ScanJob) error {
	if n.host == "" {
		n.logger.Debug("email notifications disabled, skipping",
			zap.String("job_id", job.ID.String()),
		)
		return nil
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := buildFailureMessage(n.from, userEmail, job)

	if err := smtp.SendMail(addr, nil, n.from, []string{userEmail}, msg); err != nil {
		n.logger.Error("failure notification email not sent",
			zap.String("to", userEmail),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("job_id", job.ID.String()),
	)
	return nil
}

func buildFailureMessage(from, to string, job *entity.ScanJob) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Video Safety Scan Failed [Job %s]\r\n", job.ID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Hello,\r\n\r\n")
	fmt.Fprintf(&b, "Your video safety scan failed permanently after %d attempts.\r\n\r\n", job.Attempt)
	fmt.Fprintf(&b, "Job ID: %s\r\n", job.ID)
	fmt.Fprintf(&b, "Video:  %s\r\n", job.VideoKey)
	fmt.Fprintf(&b, "Error:  %s\r\n\r\n", job.ErrorMessage)
	b.WriteString("Please upload the video again or contact support.\r\n\r\n")
	b.WriteString("-- Garbage Detector\r\n")
	return []byte(b.String())
}
