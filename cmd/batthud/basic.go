package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/client"
	"github.com/charlie0129/batthud/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of batthud",
		Long:    `Get the battery status, the remaining-time estimate, and what the HUD is showing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := apiClient()

			est, err := c.GetEstimate()
			if err != nil {
				return fmt.Errorf("failed to get estimate: %w", err)
			}
			frame, err := c.GetHUD()
			if err != nil {
				return fmt.Errorf("failed to get hud: %w", err)
			}
			health, err := c.GetHealth()
			if err != nil {
				return fmt.Errorf("failed to get health: %w", err)
			}

			cmd.Println(bold("Battery status:"))
			sample, err := c.GetBattery()
			switch {
			case errors.Is(err, client.ErrNotFound):
				cmd.Println("  No sample yet. The daemon may have just started.")
			case err != nil:
				return fmt.Errorf("failed to get battery: %w", err)
			default:
				cmd.Printf("  Current charge: %s\n", bold("%.0f%%", sample.Percentage))
				cmd.Printf("  State: %s\n", bold("%s", chargingStateText(sample.ChargingState)))
				cmd.Printf("  Thermal state: %s\n", bold("%s", thermalStateText(sample.ThermalState)))
			}

			if est.UntilFull != nil {
				cmd.Printf("  Time to %.0f%%: %s\n", est.Target, bold("%s", formatDuration(*est.UntilFull)))
			}
			if est.UntilEmpty != nil {
				cmd.Printf("  Time remaining: %s\n", bold("%s", formatDuration(*est.UntilEmpty)))
			}
			if tel, err := c.GetPowerTelemetry(); err == nil {
				cmd.Printf("  Battery power: %s\n", powerText(tel.BatteryPower))
				cmd.Printf("  System power: %s\n", bold("%.1f W", tel.SystemPower))
			} else {
				logrus.WithError(err).Debug("power telemetry unavailable")
			}
			if est.HourlyRate != nil {
				cmd.Printf("  Rate: %s\n", bold("%+.1f %s", *est.HourlyRate, est.RateUnit))
			} else {
				cmd.Printf("  Rate: collecting samples (%d so far)\n", est.Samples)
			}

			cmd.Println()
			cmd.Println(bold("HUD:"))
			cmd.Printf("  State: %s\n", bold("%s", frame.State))
			if frame.Title != "" {
				line := frame.Title
				if frame.Subtitle != "" {
					line += " · " + frame.Subtitle
				}
				cmd.Printf("  Showing: %s\n", bold("%s", line))
			}

			cmd.Println()
			cmd.Println(bold("Daemon:"))
			if !health.LastSample.IsZero() {
				cmd.Printf("  Last sample: %s\n", health.LastSample.Local().Format("3:04:05PM"))
			}
			cmd.Printf("  Samples in the last minute: %d\n", health.RecentSamples)
			if health.Dropped > 0 {
				cmd.Printf("  Dropped inputs: %s\n", bold("%d", health.Dropped))
			}

			return nil
		},
	}
}

func NewDevicesCommand() *cobra.Command {
	all := false

	cmd := &cobra.Command{
		Use:     "devices",
		GroupID: gBasic,
		Short:   "List Bluetooth accessories",
		Long:    `List connected Bluetooth accessories with their battery level and distance. Use --all to include paired devices that are not connected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := apiClient()

			var (
				devices []accessory.Record
				err     error
			)
			if all {
				devices, err = c.GetDevices()
			} else {
				devices, err = c.GetConnectedDevices()
			}
			if err != nil {
				return err
			}

			if len(devices) == 0 {
				cmd.Println("No devices.")
				return nil
			}

			for _, d := range devices {
				cmd.Println(formatDevice(d))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include paired devices that are not connected")

	return cmd
}

func formatDevice(d accessory.Record) string {
	var b strings.Builder
	name := d.Name
	if name == "" {
		name = accessory.ColonAddress(d.Address)
	}
	b.WriteString(bold("%s", name))
	fmt.Fprintf(&b, " (%s)", d.Category)
	b.WriteString(" " + bool2Text(d.ConnectionState == accessory.Connected))
	if d.BatteryPercent != nil {
		fmt.Fprintf(&b, " battery %d%%", *d.BatteryPercent)
	}
	if d.Distance != "" {
		fmt.Fprintf(&b, " %s", d.Distance)
	}
	return b.String()
}

func NewOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "open",
		GroupID: gBasic,
		Short:   "Show the HUD with the battery status",
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient().Open()
			if err != nil {
				return fmt.Errorf("failed to open hud: %w", err)
			}
			logrus.Infof("daemon responded: %s", ret)
			return nil
		},
	}
}
