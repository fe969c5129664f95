// Package gui is a menu bar stand-in for the HUD renderer. It mirrors the
// HUD title and subtitle while the HUD is visible and sends user input back
// to the daemon.
package gui

import (
	"context"
	"time"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/batthud/pkg/client"
	"github.com/charlie0129/batthud/pkg/hud"
	"github.com/charlie0129/batthud/pkg/version"
)

const reconnectDelay = 2 * time.Second

// NewTrayCommand reads unixSocketPath when it runs, after flags are parsed.
func NewTrayCommand(unixSocketPath *string, groupID string) *cobra.Command {
	return &cobra.Command{
		Use:     "tray",
		Short:   "Show the HUD in the menu bar",
		GroupID: groupID,
		Long: `Show the HUD in the menu bar.

The menu bar title mirrors the HUD while it is visible. Menu items open, expand and dismiss the HUD.`,
		Run: func(_ *cobra.Command, _ []string) {
			Run(*unixSocketPath)
		},
	}
}

func Run(unixSocketPath string) {
	apiClient := client.NewClient(unixSocketPath)
	logrus.WithField("version", version.Version).WithField("gitCommit", version.GitCommit).Info("batthud tray")

	ctx, cancel := context.WithCancel(context.Background())
	systray.Run(func() { onReady(ctx, apiClient) }, func() {
		cancel()
		logrus.Info("batthud tray exiting")
	})
}

func onReady(ctx context.Context, apiClient *client.Client) {
	systray.SetTitle(idleTitle)
	systray.SetTooltip("batthud")

	mShow := systray.AddMenuItem("Show Battery", "Show the HUD with the battery status")
	mExpand := systray.AddMenuItem("Expand", "Show details of the current alert")
	mDismiss := systray.AddMenuItem("Dismiss", "Dismiss the HUD")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the menu bar app")

	m := &mirror{setTitle: func(title, tooltip string) {
		systray.SetTitle(title)
		systray.SetTooltip(tooltip)
	}}

	go func() {
		for {
			var err error
			select {
			case <-mShow.ClickedCh:
				_, err = apiClient.Open()
			case <-mExpand.ClickedCh:
				_, err = apiClient.Click(hud.Detailed)
			case <-mDismiss.ClickedCh:
				_, err = apiClient.Click(hud.Dismissed)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			case <-ctx.Done():
				return
			}
			if err != nil {
				logrus.WithError(err).Error("failed to send input to daemon")
			}
		}
	}()

	go watch(ctx, apiClient, m)
}

// watch keeps the HUD stream open, reconnecting after a delay.
func watch(ctx context.Context, apiClient *client.Client, m *mirror) {
	for {
		err := apiClient.Watch(ctx, m.handle)
		if ctx.Err() != nil {
			return
		}
		logrus.WithError(err).Warn("lost connection to daemon")
		m.offline()

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}
