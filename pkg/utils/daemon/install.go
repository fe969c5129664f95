package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"howett.net/plist"
)

const (
	label     = "cc.chlc.batthud"
	plistPath = "/Library/LaunchDaemons/" + label + ".plist"
)

type launchDaemon struct {
	Label             string   `plist:"Label"`
	ProgramArguments  []string `plist:"ProgramArguments"`
	RunAtLoad         bool     `plist:"RunAtLoad"`
	KeepAlive         bool     `plist:"KeepAlive"`
	StandardOutPath   string   `plist:"StandardOutPath"`
	StandardErrorPath string   `plist:"StandardErrorPath"`
}

// RenderPlist returns the launchd job that runs exePath as the daemon.
func RenderPlist(exePath string, args ...string) ([]byte, error) {
	job := launchDaemon{
		Label:             label,
		ProgramArguments:  append([]string{exePath, "daemon"}, args...),
		RunAtLoad:         true,
		KeepAlive:         true,
		StandardOutPath:   "/tmp/batthud.log",
		StandardErrorPath: "/tmp/batthud.log",
	}
	return plist.MarshalIndent(job, plist.XMLFormat, "\t")
}

// Install writes the launchd job for the current executable and loads it.
func Install(args ...string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	b, err := RenderPlist(exePath, args...)
	if err != nil {
		return fmt.Errorf("failed to render launch daemon: %w", err)
	}

	logrus.Infof("writing launch daemon to /Library/LaunchDaemons")

	// mkdir -p
	err = os.MkdirAll("/Library/LaunchDaemons", 0755)
	if err != nil {
		return fmt.Errorf("failed to create /Library/LaunchDaemons: %w", err)
	}

	// warn if the file already exists
	_, err = os.Stat(plistPath)
	if err == nil {
		logrus.Errorf("%s already exists", plistPath)
	}

	err = os.WriteFile(plistPath, b, 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", plistPath, err)
	}

	// chown root:wheel
	err = os.Chown(plistPath, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to chown %s: %w", plistPath, err)
	}

	logrus.Infof("starting batthud")

	err = exec.Command(
		"/bin/launchctl",
		"load",
		plistPath,
	).Run()
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", plistPath, err)
	}

	return nil
}
