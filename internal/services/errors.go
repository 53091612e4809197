package services

import (
	"errors"

	"github.com/aito-ai/voice-agent-backend/internal/db"
)

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
