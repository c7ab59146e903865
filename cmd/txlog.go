package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-intents/app/service"
)

var statusPaymentIntentID string

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect and export the transaction log",
}

var logStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of logged payment intents as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, paymentService, cleanup := mustCreateReadOnlyPaymentService()
		defer cleanup()

		var out interface{}
		if statusPaymentIntentID != "" {
			record, err := paymentService.PaymentIntentRecord(statusPaymentIntentID)
			if errors.Is(err, service.ErrPaymentNotFound) {
				return fmt.Errorf("payment intent %s is not in the transaction log", statusPaymentIntentID)
			}
			if err != nil {
				return err
			}
			out = record
		} else {
			records, err := paymentService.PaymentIntentRecords()
			if err != nil {
				return err
			}
			out = records
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	},
}

var historyPaymentIntentID string

var logHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print every entry recorded for one payment intent",
	Long:  "Print every entry recorded for one payment intent, read from the MySQL mirror when configured and from the log file otherwise.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, paymentService, cleanup := mustCreateReadOnlyPaymentService()
		defer cleanup()

		history, err := paymentService.PaymentIntentHistory(context.Background(), historyPaymentIntentID)
		if errors.Is(err, service.ErrPaymentNotFound) {
			return fmt.Errorf("no entries recorded for payment intent %s", historyPaymentIntentID)
		}
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		for _, entry := range history {
			if err := encoder.Encode(entry); err != nil {
				return err
			}
		}
		return nil
	},
}

var logMirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Copy transaction log entries missing from the MySQL mirror",
	Run: func(_ *cobra.Command, _ []string) {
		_, paymentService, cleanup := mustCreateReadOnlyPaymentService()
		defer cleanup()

		start := time.Now()
		report, err := paymentService.MirrorLog(context.Background())
		fields := logrus.Fields{"latency": time.Since(start).String()}
		if report != nil {
			fields["copied"] = report.Copied
			fields["skipped"] = report.Skipped
			fields["total"] = report.Total
		}
		if err != nil {
			logrus.WithError(err).WithFields(fields).Error("log_mirror_failed")
			cleanup()
			os.Exit(1)
		}
		logrus.WithFields(fields).Info("log_mirror_completed")
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logStatusCmd)
	logCmd.AddCommand(logHistoryCmd)
	logCmd.AddCommand(logMirrorCmd)

	logStatusCmd.Flags().StringVar(&statusPaymentIntentID, "id", "", "Only print the payment intent with this ID")
	logHistoryCmd.Flags().StringVar(&historyPaymentIntentID, "id", "", "Payment intent ID")
	_ = logHistoryCmd.MarkFlagRequired("id")
}
