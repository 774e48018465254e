package dbservice

import (
	"errors"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/dbmodels"
	"gorm.io/gorm"
)

// InsertOrUpdateSession will insert if the ID is empty, otherwise update.
func (s *DatabaseService) InsertOrUpdateSession(info *dbmodels.SpeechSession) (int64, error) {
	result := s.db.Save(info)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *DatabaseService) GetSessionBySessionId(sessionId string) (*dbmodels.SpeechSession, error) {
	info := new(dbmodels.SpeechSession)
	result := s.db.Where(&dbmodels.SpeechSession{SessionId: sessionId}).Take(info)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, nil
	case result.Error != nil:
		return nil, result.Error
	}
	return info, nil
}

// GetSessions returns the latest sessions first.
func (s *DatabaseService) GetSessions(offset, limit int) ([]dbmodels.SpeechSession, int64, error) {
	var sessions []dbmodels.SpeechSession
	var total int64

	d := s.db.Model(&dbmodels.SpeechSession{})
	if err := d.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}

	result := d.Order("id DESC").Offset(offset).Limit(limit).Find(&sessions)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return sessions, total, nil
}
