package dbmodels

import (
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
)

type SpeechSession struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	SessionId      string    `gorm:"column:session_id;unique;NOT NULL"`
	ConversationId string    `gorm:"column:conversation_id;NOT NULL"`
	UserId         string    `gorm:"column:user_id;NOT NULL"`
	Provider       string    `gorm:"column:provider;NOT NULL"`
	Utterances     int64     `gorm:"column:utterances;default:0;NOT NULL"`
	Activities     int64     `gorm:"column:activities;default:0;NOT NULL"`
	UsageSeconds   int64     `gorm:"column:usage_seconds;default:0;NOT NULL"`
	EndReason      string    `gorm:"column:end_reason;NOT NULL"`
	Created        time.Time `gorm:"column:created;autoCreateTime"`
	Ended          time.Time `gorm:"column:ended"`
}

func (m *SpeechSession) TableName() string {
	return config.FormatDBTable("speech_sessions")
}
