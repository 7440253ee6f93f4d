// Package notify delivers one-time passwords to users over email.
//
//	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
//	    Host: "smtp.example.com",
//	    Port: 587,
//	    From: "noreply@example.com",
//	})
//	err = n.Notify(ctx, notify.Message{To: "alice@example.com", DisplayName: "Alice", Token: "492039"})
package notify
