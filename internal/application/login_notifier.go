package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/config"
	"github.com/oksasatya/storefront-admin/pkg/clock"
	"github.com/oksasatya/storefront-admin/pkg/mailer"
	mailtpl "github.com/oksasatya/storefront-admin/pkg/mailer/templates"
)

// LoginNotifier queues a login_notification email for the email worker
// whenever an admin signs in.
type LoginNotifier struct {
	Publisher mailer.Publisher
	Config    *config.Config
	Clock     clock.Clock
	Logger    *logrus.Logger
	Timeout   time.Duration
}

func NewLoginNotifier(pub mailer.Publisher, cfg *config.Config, logger *logrus.Logger) *LoginNotifier {
	return &LoginNotifier{
		Publisher: pub,
		Config:    cfg,
		Clock:     clock.RealClock{},
		Logger:    logger,
		Timeout:   cfg.RequestTimeout,
	}
}

// NotifyLogin publishes the job. Failures are logged; a login never fails
// because its notification could not be queued.
func (n *LoginNotifier) NotifyLogin(ctx context.Context, email, ip, userAgent string) {
	if n == nil || n.Publisher == nil || email == "" {
		return
	}
	job := mailer.EmailJob{
		To:       email,
		Template: mailtpl.LoginNotification,
		Data: mailtpl.NewLoginNotificationData(n.Config, email,
			mailtpl.WithIP(ip),
			mailtpl.WithUserAgent(userAgent),
			mailtpl.WithTime(n.Clock.Now()),
		),
	}
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	if err := n.Publisher.PublishJSON(ctx, job); err != nil && n.Logger != nil {
		n.Logger.WithError(err).WithField("email", email).Warn("queue login notification failed")
	}
}
