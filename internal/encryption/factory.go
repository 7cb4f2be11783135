package encryption

import (
	"fmt"

	"baucam/internal/config"
	"baucam/internal/timelapse"
)

// NewEncryptorFromConfig creates the backup Encryptor named by the configuration.
func NewEncryptorFromConfig(cfg config.BackupConfig) (timelapse.Encryptor, error) {
	switch cfg.Encryption {
	case "none", "":
		return NoneEncryptor{}, nil
	case "age":
		e := NewAgeEncryptor(cfg.RecipientsPath)
		if !e.IsConfigured() {
			return nil, fmt.Errorf("age recipients file not found at %s (run 'baucam backup keygen')", cfg.RecipientsPath)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Encryption)
	}
}
