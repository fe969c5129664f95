package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/batthud/pkg/hud"
)

func NewHoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "hover [true|false]",
		GroupID: gAdvanced,
		Short:   "Tell the HUD the pointer entered or left it",
		Long: `Tell the HUD the pointer entered or left it.

While hovered the auto-dismiss timer is paused. It resumes with the time that was left once the pointer leaves. Renderers call this, it is exposed here for testing.`,
		RunE: func(_ *cobra.Command, args []string) error {
			hovered, err := parseBoolArg(args, "hover state")
			if err != nil {
				return err
			}

			ret, err := apiClient().Hover(hovered)
			if err != nil {
				return fmt.Errorf("failed to send hover: %w", err)
			}
			logrus.Infof("daemon responded: %s", ret)
			return nil
		},
	}
}

func NewClickCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "click [detailed|dismissed]",
		GroupID:   gAdvanced,
		Short:     "Click the HUD",
		Long:      `Click the HUD to expand it (detailed) or to dismiss it (dismissed).`,
		ValidArgs: []string{string(hud.Detailed), string(hud.Dismissed)},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(_ *cobra.Command, args []string) error {
			ret, err := apiClient().Click(hud.State(args[0]))
			if err != nil {
				return fmt.Errorf("failed to send click: %w", err)
			}
			logrus.Infof("daemon responded: %s", ret)
			return nil
		},
	}
}
