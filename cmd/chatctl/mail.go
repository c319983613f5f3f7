package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/mail"
)

func newMailCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Mail diagnostics",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test <to>",
		Short: "Send a test message through the configured SMTP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := mail.NewSender(mail.Config{
				Host: e.cfg.SMTPHost,
				Port: e.cfg.SMTPPort,
				User: e.cfg.SMTPUser,
				Pass: e.cfg.SMTPPass,
				From: e.cfg.SMTPFrom,
			}, e.logger)
			if !s.Enabled() {
				return mail.ErrNotConfigured
			}
			err := s.Send(cmd.Context(), mail.Message{
				To:      []string{args[0]},
				Subject: e.cfg.AppName + " SMTP test",
				Text:    "If you can read this, outgoing mail works.",
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent test message to %s\n", args[0])
			return err
		},
	})
	return cmd
}
