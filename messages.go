package main

import (
	"html/template"
	"os"
	"path/filepath"
)

// messagesTemplate renders the unread list as a standalone document. Feed
// content is untrusted, so it always goes through the auto-escaping
// html/template pipeline.
var messagesTemplate = template.Must(template.New("messages").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Unread messages for {{.Email}}</title>
<style>
body { font-family: sans-serif; background: #1a1a1a; color: #eee; margin: 2em; }
h1 { font-size: 1.2em; border-bottom: 1px solid #444; padding-bottom: 0.4em; }
.msg { background: #262626; border-radius: 6px; padding: 0.8em 1em; margin: 0.8em 0; }
.msg .title { font-weight: bold; margin-bottom: 0.3em; }
.msg .body { color: #bbb; white-space: pre-wrap; }
.empty { color: #888; font-style: italic; }
</style>
</head>
<body>
<h1>Unread messages for {{.Email}} ({{len .Messages}})</h1>
{{range .Messages}}<div class="msg">
<div class="title">{{.Title}}</div>
<div class="body">{{.Body}}</div>
</div>
{{else}}<p class="empty">No unread messages.</p>
{{end}}</body>
</html>
`))

// writeMessagesView renders the session's current unread messages to a file
// under the OS temp dir and returns its path.
func writeMessagesView(email string, messages []WebhookMessage) (string, error) {
	path := filepath.Join(os.TempDir(), "unreaddeck-messages.html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data := struct {
		Email    string
		Messages []WebhookMessage
	}{Email: email, Messages: messages}
	if err := messagesTemplate.Execute(f, data); err != nil {
		return "", err
	}
	return path, nil
}

// openMessagesView materializes the message list as HTML and asks the host
// application to open it in the default browser.
func (s *Session) openMessagesView() {
	path, err := writeMessagesView(s.settings.UserEmail, s.messages)
	if err != nil {
		s.logf("message view write failed: %v", err)
		return
	}
	if err := s.surface.OpenURL("file://" + path); err != nil {
		s.logf("openUrl failed: %v", err)
	}
}
