package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

type emailTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const baseHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.subject}}</title></head>
<body style="font-family: sans-serif; color: #555;">
<p>Hi {{.firstName}},</p>
{{template "content" .}}
<p>- The Natours team</p>
</body></html>`

func mustTemplate(name, subject, text, content string) emailTemplate {
	h := htmltemplate.Must(htmltemplate.New(name).Parse(baseHTML))
	htmltemplate.Must(h.New("content").Parse(content))
	return emailTemplate{
		subject: subject,
		text:    texttemplate.Must(texttemplate.New(name).Parse(text)),
		html:    h,
	}
}

var templates = map[string]emailTemplate{
	"welcome": mustTemplate("welcome",
		"Welcome to Natours family!",
		"Hi {{.firstName}},\n\nWelcome to Natours, we're glad to have you.\nUpload a photo on your account page: {{.url}}\n",
		`<p>Welcome to Natours, we're glad to have you.</p>
<p><a href="{{.url}}">Upload your user photo</a></p>`),
	"passwordReset": mustTemplate("passwordReset",
		"Your password reset token (valid for only 10 minutes)",
		"Hi {{.firstName}},\n\nForgot your password? Submit a PATCH request with your new password and passwordConfirm to: {{.url}}\nIf you didn't forget your password, please ignore this email.\n",
		`<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
<p><a href="{{.url}}">{{.url}}</a></p>
<p>If you didn't forget your password, please ignore this email.</p>`),
	"bookingConfirmed": mustTemplate("bookingConfirmed",
		"Your tour is booked!",
		"Hi {{.firstName}},\n\nYour booking for {{.tourName}} is confirmed. Amount paid: {{.price}} EUR.\nSee your tours: {{.url}}\n",
		`<p>Your booking for <b>{{.tourName}}</b> is confirmed.</p>
<p>Amount paid: {{.price}} EUR</p>
<p><a href="{{.url}}">See my tours</a></p>`),
}

// Render fills a template with vars. "name" is shortened to a first name.
func Render(template string, to string, vars map[string]string) (Message, error) {
	t, ok := templates[template]
	if !ok {
		return Message{}, fmt.Errorf("mailer: unknown template %q", template)
	}

	data := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		data[k] = v
	}
	data["subject"] = t.subject
	data["firstName"] = firstName(vars["name"])

	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render %s text: %w", template, err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render %s html: %w", template, err)
	}

	return Message{
		To:      to,
		ToName:  vars["name"],
		Subject: t.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}
