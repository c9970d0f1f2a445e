package monitor

import (
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/seatwatch/seatwatch-backend/internal/model"
)

// MailNotifier sends opening notifications over SMTP. Delivery is best-effort
// and synchronous; a transport failure is reported as delivered=false and
// never propagates.
type MailNotifier struct {
	dialer *gomail.Dialer
	from   string
	log    zerolog.Logger
}

func NewMailNotifier(host string, port int, username, password, from string, log zerolog.Logger) *MailNotifier {
	return &MailNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		log:    log.With().Str("component", "mail_notifier").Logger(),
	}
}

// Notify sends one message addressed to all recipients about an opening in
// the given course. An empty recipient set is a no-op reported as delivered:
// nothing failed, and the transport is never dialed. False means an actual
// delivery attempt failed.
func (n *MailNotifier) Notify(recipients []model.Watcher, course model.Course) bool {
	if len(recipients) == 0 {
		return true
	}

	to := make([]string, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, r.Email)
	}

	subject := fmt.Sprintf("There is an open seat in %s. Check the SSC.", course.Key.Label())
	body := fmt.Sprintf(
		"There is an opening in %s %s, section %s.\n\n%s\n\n"+
			"If you do not want to receive any more emails like this, "+
			"just go to your profile page to unsubscribe.",
		course.Key.Subject, course.Key.Number, course.Key.Section, course.Key.URL(),
	)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		n.log.Warn().Err(err).Str("course", course.Key.String()).Msg("Mail delivery failed")
		return false
	}
	return true
}
