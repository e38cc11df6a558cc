//go:build windows

package service

import (
	"fmt"
	"os/exec"
	"strings"
)

func install(cfg Config) error {
	tr := cfg.ExecPath
	if len(cfg.Args) > 0 {
		tr = fmt.Sprintf("%s %s", cfg.ExecPath, strings.Join(cfg.Args, " "))
	}
	cmd := exec.Command("schtasks", "/Create", "/TN", cfg.Label, "/TR", tr, "/SC", "ONLOGON", "/RL", "LIMITED", "/F")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("schtasks /Create: %w: %s", err, strings.TrimSpace(string(out)))
	}
	out, err = exec.Command("schtasks", "/Run", "/TN", cfg.Label).CombinedOutput()
	if err != nil {
		return fmt.Errorf("schtasks /Run: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func uninstall(cfg Config) error {
	_ = exec.Command("schtasks", "/End", "/TN", cfg.Label).Run()
	cmd := exec.Command("schtasks", "/Delete", "/TN", cfg.Label, "/F")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("schtasks /Delete: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
