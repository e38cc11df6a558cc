//go:build !linux && !darwin && !windows

package service

import "fmt"

func install(cfg Config) error {
	return fmt.Errorf("daemon install is not supported on this platform")
}

func uninstall(cfg Config) error {
	return fmt.Errorf("daemon uninstall is not supported on this platform")
}
