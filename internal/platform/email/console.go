package email

import "go.uber.org/zap"

// consoleService logs messages instead of delivering them. Used in dev and
// whenever no Sendgrid key is configured.
type consoleService struct {
	logger *zap.SugaredLogger
}

var _ Service = (*consoleService)(nil)

func NewConsoleService(logger *zap.SugaredLogger) Service {
	return &consoleService{logger: logger}
}

func (svc *consoleService) Send(msg Message) error {
	svc.logger.Infow("email (console)",
		"to", msg.ToAddr,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
