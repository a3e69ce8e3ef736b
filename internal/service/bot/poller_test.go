package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/toolstock/internal/domain/models"
)

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]models.Update
	offsets []int64
	failed  bool
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64) ([]models.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if !s.failed {
		s.failed = true
		s.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	if len(s.batches) > 0 {
		next := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return next, nil
	}
	s.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingService struct {
	mu      sync.Mutex
	handled []int64
}

func (r *recordingService) HandleUpdate(_ context.Context, u models.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handled = append(r.handled, u.UpdateID)
	if u.UpdateID == 11 {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingService) SendOutbound(context.Context, models.OutboundMessageRequest) error {
	return nil
}

func (r *recordingService) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handled)
}

func TestPollerAdvancesOffset(t *testing.T) {
	source := &scriptedSource{batches: [][]models.Update{
		{{UpdateID: 10}, {UpdateID: 11}},
		{{UpdateID: 12}},
	}}
	svc := &recordingService{}

	poller := NewPoller(source, svc, nil)
	poller.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return svc.count() == 3 && len(source.offsets) == 4
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int64{10, 11, 12}, svc.handled)
	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, []int64{0, 0, 12, 13}, source.offsets)
}
