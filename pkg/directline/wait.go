package directline

import (
	"context"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/observable"
)

// StatusReporter is anything exposing a connection status stream.
type StatusReporter interface {
	ConnectionStatus() observable.Source[activitymodel.ConnectionStatus]
}

// WaitForConnected blocks until c reports Online. Terminal states are
// returned as errors, a done ctx as ctx.Err().
func WaitForConnected(ctx context.Context, c StatusReporter) error {
	settled := observable.Filter(c.ConnectionStatus(), func(s activitymodel.ConnectionStatus) bool {
		return s == activitymodel.Online || s.IsTerminal()
	})

	statuses, err := observable.SubscribeAll(observable.Take(settled, 1)).Wait(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		return ErrEnded
	}

	switch statuses[0] {
	case activitymodel.Online:
		return nil
	case activitymodel.ExpiredToken:
		return ErrTokenExpired
	case activitymodel.FailedToConnect:
		return ErrConnectionFailed
	default:
		return ErrEnded
	}
}
