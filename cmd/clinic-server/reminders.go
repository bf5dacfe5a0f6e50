package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carebridge/clinic/internal/config"
	"github.com/carebridge/clinic/internal/domain/appointment"
	"github.com/carebridge/clinic/internal/domain/identity"
	"github.com/carebridge/clinic/internal/domain/notification"
	"github.com/carebridge/clinic/internal/domain/profile"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/internal/platform/notify"
)

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Appointment reminder delivery",
	}

	dispatchCmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver due appointment reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			every, _ := cmd.Flags().GetDuration("every")
			return runDispatch(every)
		},
	}
	dispatchCmd.Flags().Duration("every", 0, "Repeat at this interval until interrupted (0 runs once)")
	cmd.AddCommand(dispatchCmd)
	return cmd
}

func runDispatch(every time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg).With().Str("component", "reminders").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	profileSvc := profile.NewService(profile.NewRepoPG(pool), identity.NewUserRepoPG(pool), db.NewTransactor(pool), logger)
	appointments := appointment.NewService(appointment.NewRepoPG(pool), profileSvc, logger)
	notifications := notification.NewService(notification.NewRepoPG(pool), notification.NewTemplates(), logger)

	var sender notify.Sender
	if cfg.ReminderWebhookURL != "" {
		sender = notify.NewClient(cfg.ReminderWebhookURL, cfg.ReminderWebhookToken)
	} else {
		logger.Info().Msg("no reminder webhook configured, recording in-app notifications only")
	}
	dispatcher := notify.NewDispatcher(appointments, notifications, sender, logger)

	run := func() error {
		sum, err := dispatcher.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("pending=%d sent=%d failed=%d\n", sum.Pending, sum.Sent, sum.Failed)
		return nil
	}

	if every <= 0 {
		return run()
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := run(); err != nil {
			logger.Error().Err(err).Msg("reminder dispatch failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
