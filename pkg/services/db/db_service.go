package dbservice

import (
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/dbmodels"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type DatabaseService struct {
	db     *gorm.DB
	logger *logrus.Entry
}

func New(db *gorm.DB, logger *logrus.Logger) *DatabaseService {
	return &DatabaseService{
		db:     db,
		logger: logger.WithField("service", "database"),
	}
}

// AutoMigrate creates or updates the tables this service owns.
func (s *DatabaseService) AutoMigrate() error {
	return s.db.AutoMigrate(&dbmodels.SpeechSession{})
}
