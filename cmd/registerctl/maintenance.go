package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Release the slots of registrations whose hold has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()
			n, err := a.engine.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "swept %d registrations\n", n)
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup-payments",
		Short: "Delete unconfirmed payments that never reached the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()
			if olderThan <= 0 {
				olderThan = a.cfg.AbandonedPaymentAge
			}
			n, err := a.coord.CleanupAbandoned(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d payments\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum age (defaults to ABANDONED_PAYMENT_AGE)")
	return cmd
}

func layoutCmd() *cobra.Command {
	var eventID uint64
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Generate or remove the slot layout of an event",
	}
	cmd.PersistentFlags().Uint64Var(&eventID, "event", 0, "event id")
	_ = cmd.MarkPersistentFlagRequired("event")

	run := func(remove bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if eventID == 0 {
				return errors.New("--event is required")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()
			if remove {
				n, err := a.engine.RemoveLayout(cmd.Context(), eventID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d slots from event %d\n", n, eventID)
				return nil
			}
			n, err := a.engine.GenerateLayout(cmd.Context(), eventID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d slots for event %d\n", n, eventID)
			return nil
		}
	}
	cmd.AddCommand(&cobra.Command{Use: "generate", Short: "Create the event's slots", RunE: run(false)})
	cmd.AddCommand(&cobra.Command{Use: "remove", Short: "Delete the event's slots", RunE: run(true)})
	return cmd
}
