package helpers

import (
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
)

func HandleCloseConnections() {
	appCnf := config.GetConfig()
	if appCnf == nil {
		return
	}

	if appCnf.DB != nil {
		if db, err := appCnf.DB.DB(); err == nil {
			_ = db.Close()
		}
	}
	if appCnf.RDS != nil {
		_ = appCnf.RDS.Close()
	}
	if appCnf.NatsConn != nil {
		_ = appCnf.NatsConn.Drain()
	}
}
