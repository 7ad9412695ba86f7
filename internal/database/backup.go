package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/config"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// BackupService periodically snapshots the durable booking state. SQLite
// databases are copied with VACUUM INTO; any other file (the JSON store) is
// copied byte for byte.
type BackupService struct {
	sourcePath string
	sqlite     bool
	config     config.BackupConfig
	logger     *zerolog.Logger
}

func NewBackupService(sourcePath string, sqlite bool, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		sourcePath: sourcePath,
		sqlite:     sqlite,
		config:     cfg,
		logger:     logger,
	}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	interval := s.config.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.logger.Info().Dur("interval", interval).Str("source", s.sourcePath).Msg("Backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.PerformBackup(); err != nil {
		s.logger.Error().Err(err).Msg("Initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PerformBackup(); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

// PerformBackup writes one snapshot and returns its path.
func (s *BackupService) PerformBackup() (string, error) {
	if _, err := os.Stat(s.sourcePath); err != nil {
		return "", fmt.Errorf("backup source: %w", err)
	}
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	ext := filepath.Ext(s.sourcePath)
	if ext == "" {
		ext = ".bak"
	}
	base := strings.TrimSuffix(filepath.Base(s.sourcePath), filepath.Ext(s.sourcePath))
	timestamp := time.Now().Format("20060102_150405.000000")
	backupPath := filepath.Join(s.config.StoragePath, fmt.Sprintf("%s_%s%s", base, timestamp, ext))

	if !s.sqlite {
		return backupPath, s.copyFile(backupPath)
	}

	s.logger.Info().Str("path", backupPath).Msg("Performing database backup using VACUUM INTO")

	db, err := sqlx.Open("sqlite3", s.sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(backupPath, "'", "''"))); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		return backupPath, s.copyFile(backupPath)
	}

	s.logger.Info().Msg("Backup completed successfully")
	return backupPath, nil
}

func (s *BackupService) copyFile(backupPath string) error {
	source, err := os.Open(s.sourcePath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}

	s.logger.Info().Str("path", backupPath).Msg("File backup completed successfully")
	return nil
}

func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("Deleting old backup")
			os.Remove(filepath.Join(s.config.StoragePath, file.Name()))
		}
	}
}
