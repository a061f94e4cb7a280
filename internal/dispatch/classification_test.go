package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustchat/internal/classifier"
	"trustchat/internal/models"
)

type oracleFunc func(ctx context.Context, text string) (bool, error)

func (f oracleFunc) Classify(ctx context.Context, text string) (bool, error) { return f(ctx, text) }

// startWithPool replaces the recording scheduler with a real worker pool.
func startWithPool(t *testing.T, f *fixture, oracle classifier.Oracle, timeout time.Duration) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := classifier.NewPool(oracle, classifier.Config{Workers: 2, QueueSize: 8, Timeout: timeout}, log)
	f.engine.scheduler = pool

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx, f.engine)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})
}

func TestScamVerdictUpdatesReceiverOnce(t *testing.T) {
	f := newFixture("bob")
	startWithPool(t, f, oracleFunc(func(context.Context, string) (bool, error) { return true, nil }), time.Second)

	msg, err := f.engine.SendDirect(context.Background(), "alice", "bob", Content{Text: "claim your prize"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.notifier.ofType(models.EventMessageUpdated)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	updated := f.notifier.ofType(models.EventMessageUpdated)[0]
	got := updated.event.Data.(models.Message)
	assert.Equal(t, msg.ID, got.ID)
	assert.True(t, got.IsScam)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.notifier.ofType(models.EventMessageUpdated), 1)
}

func TestOracleFailureLeavesMessageClean(t *testing.T) {
	cases := map[string]classifier.Oracle{
		"error": oracleFunc(func(context.Context, string) (bool, error) { return false, errors.New("oracle down") }),
		"timeout": oracleFunc(func(ctx context.Context, _ string) (bool, error) {
			<-ctx.Done()
			return true, ctx.Err()
		}),
	}
	for name, oracle := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture("bob")
			startWithPool(t, f, oracle, 20*time.Millisecond)

			msg, err := f.engine.SendDirect(context.Background(), "alice", "bob", Content{Text: "hello"})
			require.NoError(t, err)

			time.Sleep(150 * time.Millisecond)
			assert.Empty(t, f.notifier.ofType(models.EventMessageUpdated))
			stored, err := f.messages.Get(context.Background(), msg.ID)
			require.NoError(t, err)
			assert.False(t, stored.IsScam)
		})
	}
}

func TestReceiverReadIsVisibleToSender(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sent, err := f.engine.SendDirect(ctx, "alice", "bob", Content{Text: "are you there"})
	require.NoError(t, err)
	assert.False(t, sent.Seen)

	_, err = f.engine.GetConversation(ctx, "bob", "alice")
	require.NoError(t, err)

	msgs, err := f.engine.GetConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Seen)
}
