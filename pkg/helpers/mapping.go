package helpers

import (
	"fmt"
	"strings"

	"github.com/oksasatya/storefront-admin/pkg/mailer"
	mailtpl "github.com/oksasatya/storefront-admin/pkg/mailer/templates"
)

// EnsureRecipientAndEmail fills the template's Email and RecipientEmail
// from job.To when the publisher left them out.
func EnsureRecipientAndEmail(job *mailer.EmailJob) {
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	if v, ok := job.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["RecipientEmail"] = job.To
	}
}

// RenderJob fills subject, text and html from the job's template when it
// names one. Jobs without a template are sent as published.
func RenderJob(job *mailer.EmailJob) (subject, text, html string, err error) {
	if strings.TrimSpace(job.Template) == "" {
		return job.Subject, job.Text, job.HTML, nil
	}
	EnsureRecipientAndEmail(job)
	subject, text, html, err = mailtpl.Render(strings.ToLower(job.Template), job.Data)
	if err != nil {
		return "", "", "", err
	}
	if job.Subject != "" {
		subject = job.Subject
	}
	return subject, text, html, nil
}
