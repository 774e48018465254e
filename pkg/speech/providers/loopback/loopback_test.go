package loopback

import (
	"context"
	"testing"
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	for _, text := range []string{"hello", "bellview", "Don't speak anything.", "aaa bbb", "Grüße"} {
		assert.Equal(t, text, decodeText(encodeText(text)))
	}
	assert.Empty(t, decodeText(make([]byte, 3200)))
	assert.Empty(t, decodeText(nil))
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"hello":                 "Hello.",
		"world":                 "World.",
		"bellview":              "Bellevue.",
		"i live in bellview!":   "I live in Bellevue!",
		"Don't speak anything.": "Don't speak anything.",
		"   ":                   "",
		"Hello.":                "Hello.",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalize(in, DefaultLexicon), in)
	}
}

func TestSuppressesSpeech(t *testing.T) {
	assert.True(t, suppressesSpeech("Don't speak anything."))
	assert.True(t, suppressesSpeech("don’t speak"))
	assert.False(t, suppressesSpeech("Hello."))
}

func TestEchoConnector_RepliesInOrder(t *testing.T) {
	c := NewEchoConnector(Options{}, logrus.NewEntry(logrus.New()))
	defer c.Close()

	received := make(chan *directline.InboundActivity, 2)
	c.OnActivity(func(in *directline.InboundActivity) {
		received <- in
	})

	ctx := context.Background()
	_, err := c.ListenOnce(ctx, encodeText("hello"))
	assert.ErrorIs(t, err, directline.ErrNotConnected)

	require.NoError(t, c.Connect(ctx))

	rec, err := c.ListenOnce(ctx, encodeText("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Hello.", rec.Text)
	_, err = c.ListenOnce(ctx, encodeText("Don't speak anything."))
	require.NoError(t, err)

	first := waitInbound(t, received)
	a, err := activitymodel.Unmarshal(first.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Hello.", a.Text)
	assert.Equal(t, "Hello.", a.Speak)
	assert.Equal(t, rec.InteractionId, a.ReplyToId)
	assert.Equal(t, "Hello.", decodeText(first.Audio))

	second := waitInbound(t, received)
	a, err = activitymodel.Unmarshal(second.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Don't speak anything.", a.Text)
	assert.Empty(t, a.Speak)
	assert.Empty(t, second.Audio)
}

func TestEchoConnector_SilenceHasNoReply(t *testing.T) {
	c := NewEchoConnector(Options{}, logrus.NewEntry(logrus.New()))
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	rec, err := c.ListenOnce(context.Background(), make([]byte, 640))
	require.NoError(t, err)
	assert.Empty(t, rec.Text)
	assert.Empty(t, c.queue)
}

func waitInbound(t *testing.T, ch <-chan *directline.InboundActivity) *directline.InboundActivity {
	t.Helper()
	select {
	case in := <-ch:
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		return nil
	}
}
