package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Alia5/jctool/bridge"
	"github.com/Alia5/jctool/internal/configpaths"
	"github.com/Alia5/jctool/internal/log"
)

const keyFileName = "jctool.key.txt"

type Serve struct {
	Bridge bridge.ServerConfig `embed:"" prefix:"bridge."`
	Device DeviceFlags         `embed:"" prefix:"device."`
	// KeyFile defaults to jctool.key.txt in the config dir.
	KeyFile string `help:"Password file used when --bridge.password is empty" env:"JCTOOL_BRIDGE_KEY_FILE"`
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger) error {
	if s.Bridge.Password == "" {
		pwd, err := s.loadOrCreateKey(logger)
		if err != nil {
			return err
		}
		s.Bridge.Password = pwd
	}

	t, closer, err := s.Device.Open(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	srv, err := bridge.NewServer(s.Bridge, t, logger, raw)
	if err != nil {
		return err
	}
	logger.Info("Starting jctool bridge", "addr", s.Bridge.Addr, "image", s.Device.Image, "remote", s.Device.Remote)
	serveErr := srv.ListenAndServe(ctx)

	if err := s.Device.Persist(t); err != nil {
		logger.Error("failed to save flash image", "path", s.Device.Image, "error", err)
	}
	return serveErr
}

func (s *Serve) keyFilePath() (string, error) {
	if s.KeyFile != "" {
		return s.KeyFile, nil
	}
	dir, err := configpaths.DefaultConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve key file path: %w", err)
	}
	return filepath.Join(dir, keyFileName), nil
}

func (s *Serve) loadOrCreateKey(logger *slog.Logger) (string, error) {
	keyFilePath, err := s.keyFilePath()
	if err != nil {
		return "", err
	}
	if pwd, err := os.ReadFile(keyFilePath); err == nil {
		if p := strings.TrimSpace(string(pwd)); p != "" {
			return p, nil
		}
	}

	newPwd, err := bridge.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate bridge password: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyFilePath), 0o700); err != nil {
		return "", fmt.Errorf("failed to create config dir for key file: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(newPwd), 0o600); err != nil {
		return "", fmt.Errorf("failed to write bridge password to file: %w", err)
	}
	logger.Info("Generated bridge password", "path", keyFilePath)
	logger.Info("-------------------------------------")
	logger.Info("Your jctool bridge password is:")
	logger.Info(newPwd)
	logger.Info("-------------------------------------")
	logger.Info("You can change this password at any time by editing the file")
	return newPwd, nil
}
