package azure

import (
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
)

// cancellationError maps a service cancellation to an error the transport
// layer understands.
func cancellationError(code common.CancellationErrorCode, details string) error {
	switch code {
	case common.AuthenticationFailure, common.Forbidden:
		return fmt.Errorf("%w: %s", directline.ErrTokenExpired, details)
	case common.ConnectionFailure, common.ServiceUnavailable, common.ServiceTimeout:
		return fmt.Errorf("%w: %s", directline.ErrConnectionFailed, details)
	default:
		return fmt.Errorf("speech service error %d: %s", int(code), details)
	}
}
