package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/batthud/pkg/alert"
)

func NewChargeLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "charge-limit [percentage]",
		Short:   "Set the charge limit",
		GroupID: gBasic,
		Long: `Set the charge limit.

This is a percentage in (0, 100]. A battery that charges up to the limit is reported as fully charged, and the time to full is estimated against the limit. Use this if another tool holds the charge below 100%.`,
		RunE: func(_ *cobra.Command, args []string) error {
			limit, err := parseIntArg(args, "limit")
			if err != nil {
				return err
			}

			ret, err := apiClient().SetChargeLimit(limit)
			if err != nil {
				return fmt.Errorf("failed to set charge limit: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set charge limit to %d%%", limit)

			return nil
		},
	}
}

func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settings",
		GroupID: gAdvanced,
		Short:   "Show or change alert and sound settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := apiClient().GetSettings()
			if err != nil {
				return err
			}

			cmd.Printf("Sound: %s\n", bool2Text(s.SoundEnabled))
			cmd.Println(bold("Alerts:"))
			for _, k := range alert.Kinds() {
				cmd.Printf("  %s: %s\n", k, bool2Text(s.Alerts[k]))
			}
			if s.LastLaunchedVersion != "" {
				cmd.Printf("Last launched version: %s\n", s.LastLaunchedVersion)
			}
			return nil
		},
	}

	cmd.AddCommand(newEnableDisableCommand(
		"sound",
		"sound effects",
		"Enable or disable the sound hints sent with alerts.",
		func() (string, error) { return apiClient().SetSoundEnabled(true) },
		func() (string, error) { return apiClient().SetSoundEnabled(false) },
	))

	alerts := &cobra.Command{
		Use:   "alert",
		Short: "Enable or disable an alert kind",
	}
	for _, k := range alert.Kinds() {
		alerts.AddCommand(newEnableDisableCommand(
			string(k),
			fmt.Sprintf("%s alerts", k),
			fmt.Sprintf("Enable or disable %s alerts. Disabled alerts are still published over MQTT but never shown.", k),
			func() (string, error) { return apiClient().SetAlertEnabled(k, true) },
			func() (string, error) { return apiClient().SetAlertEnabled(k, false) },
		))
	}
	cmd.AddCommand(alerts)

	return cmd
}
