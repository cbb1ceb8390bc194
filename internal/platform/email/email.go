package email

// Message is a plain-text transactional email.
type Message struct {
	ToName  string
	ToAddr  string
	Subject string
	Body    string
}

// Service is any backend that can deliver transactional mail. Delivery
// failures are reported to the caller, which decides whether they are fatal.
type Service interface {
	Send(msg Message) error
}
