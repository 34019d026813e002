package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/rx-scheduler/internal/service/appointment"
	"github.com/jwalitptl/rx-scheduler/internal/service/event"
	"github.com/jwalitptl/rx-scheduler/internal/service/refill"
	"github.com/jwalitptl/rx-scheduler/pkg/auth"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/messaging"
	"github.com/jwalitptl/rx-scheduler/pkg/messaging/redis"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the refill windows of a treatment without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			startArg, _ := cmd.Flags().GetString("start")
			endArg, _ := cmd.Flags().GetString("end")
			dosageArg, _ := cmd.Flags().GetString("dosage")
			packageSize, _ := cmd.Flags().GetInt("package-size")
			asJSON, _ := cmd.Flags().GetBool("json")

			start, err := model.ParseDate(startArg)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			end, err := model.ParseDate(endArg)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			dosage, err := decimal.NewFromString(dosageArg)
			if err != nil {
				return fmt.Errorf("--dosage: %w", err)
			}

			windows, err := refill.Plan(start, end, dosage, packageSize)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(windows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tDUE\tVALID FROM\tVALID TO")
			for _, win := range windows {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", win.Sequence+1, win.DueDate, win.ValidFrom, win.ValidTo)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("start", "", "first treatment day (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "last treatment day (YYYY-MM-DD)")
	cmd.Flags().String("dosage", "", "doses per day, fractions allowed")
	cmd.Flags().Int("package-size", 0, "doses per package")
	cmd.Flags().Bool("json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("dosage")
	_ = cmd.MarkFlagRequired("package-size")
	return cmd
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the free slots of a doctor on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorArg, _ := cmd.Flags().GetString("doctor")
			dateArg, _ := cmd.Flags().GetString("date")

			doctorID, err := uuid.Parse(doctorArg)
			if err != nil {
				return fmt.Errorf("--doctor: %w", err)
			}
			date, err := model.ParseDate(dateArg)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := appointment.NewService(
				postgres.NewTxManager(db),
				postgres.NewAppointmentRepository(db),
				postgres.NewPatientRepository(db),
				postgres.NewDoctorRepository(db),
				event.NewEventService(postgres.NewOutboxRepository(db)),
				logger.Nop(),
				metrics.NewMetrics("rxctl", prometheus.NewRegistry()),
			)
			free, err := svc.FreeSlots(cmd.Context(), doctorID, date)
			if err != nil {
				return err
			}
			for _, slot := range free {
				fmt.Fprintln(cmd.OutOrStdout(), slot)
			}
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "doctor id")
	cmd.Flags().String("date", "", "day to list (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			roleArg, _ := cmd.Flags().GetString("role")
			idArg, _ := cmd.Flags().GetString("id")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			role := model.Role(roleArg)
			if !role.Valid() {
				return fmt.Errorf("--role: unknown role %q", roleArg)
			}
			id, err := uuid.Parse(idArg)
			if err != nil {
				return fmt.Errorf("--id: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tokens := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
			token, err := tokens.GenerateAccessToken(model.Actor{ID: id, Role: role}, time.Now(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("role", "", "patient, doctor, pharmacy or admin")
	cmd.Flags().String("id", "", "actor id")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print relayed domain events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, _ := cmd.Flags().GetString("pattern")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), logger.Nop().Zerolog(), metrics.NewMetrics("rxctl", prometheus.NewRegistry()))
			if err != nil {
				return err
			}
			defer broker.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			messages, err := broker.Subscribe(ctx, pattern)
			if err != nil {
				return err
			}
			return printEvents(ctx, cmd, messages)
		},
	}
	cmd.Flags().String("pattern", "*", "channel pattern below the configured prefix")
	return cmd
}

func printEvents(ctx context.Context, cmd *cobra.Command, messages <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			var env messaging.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping malformed message: %v\n", err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", env.OccurredAt, env.Type, env.AggregateID, env.Payload)
		}
	}
}
