package email

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridService struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

var _ Service = (*sendgridService)(nil)

func NewSendgridService(apiKey, fromName, fromAddr string) Service {
	return &sendgridService{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

func (svc *sendgridService) Send(msg Message) error {
	from := sgmail.NewEmail(svc.fromName, svc.fromAddr)
	to := sgmail.NewEmail(msg.ToName, msg.ToAddr)
	mail := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	resp, err := svc.client.Send(mail)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
