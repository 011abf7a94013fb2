package taxonomy

import "github.com/tphakala/fieldlog/internal/logger"

// GetLogger returns the taxonomy module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("taxonomy")
}
