package database

import "roombook/internal/config"

func configFor(storage string) config.BackupConfig {
	return config.BackupConfig{Enabled: true, StoragePath: storage, RetentionDays: 1}
}
