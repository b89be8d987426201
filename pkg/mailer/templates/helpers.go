package templates

import (
	"time"

	"github.com/oksasatya/storefront-admin/config"
)

// Option pattern
type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }
func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04 MST")
	}
}

// NewBaseEmailData fills the common fields from config, then applies opts.
func NewBaseEmailData(cfg *config.Config, typ, email, recipient string, opts ...Option) EmailData {
	d := EmailData{
		Email:          email,
		RecipientEmail: recipient,
		Type:           typ,

		CompanyName: cfg.CompanyName,
		AppName:     cfg.AppName,

		SupportURL:   cfg.SupportURL,
		DashboardURL: cfg.DashboardURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewLoginNotificationData(cfg *config.Config, email string, opts ...Option) map[string]any {
	d := NewBaseEmailData(cfg, LoginNotification, email, email, opts...)
	return ToMap(d)
}
