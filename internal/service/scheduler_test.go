package service

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestScheduler_RunReset(t *testing.T) {
	mockUsage := &mockUsageResetter{}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	scheduler := NewScheduler(mockUsage, 60, logger)

	ctx := context.Background()

	mockUsage.On("ResetIfNewDay", ctx).Return(true).Once()

	scheduler.runReset(ctx)

	mockUsage.AssertExpectations(t)
}

func TestScheduler_RunResetNoop(t *testing.T) {
	mockUsage := &mockUsageResetter{}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	scheduler := NewScheduler(mockUsage, 60, logger)

	ctx := context.Background()

	mockUsage.On("ResetIfNewDay", ctx).Return(false).Once()

	scheduler.runReset(ctx)

	mockUsage.AssertExpectations(t)
}

func TestScheduler_StartStop(t *testing.T) {
	mockUsage := &mockUsageResetter{}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	scheduler := NewScheduler(mockUsage, 60, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockUsage.On("ResetIfNewDay", mock.Anything).Return(false).Maybe()

	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	mockUsage := &mockUsageResetter{}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	scheduler := NewScheduler(mockUsage, 60, logger)

	ctx, cancel := context.WithCancel(context.Background())

	mockUsage.On("ResetIfNewDay", mock.Anything).Return(false).Maybe()

	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

func TestScheduler_DefaultInterval(t *testing.T) {
	mockUsage := &mockUsageResetter{}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	scheduler := NewScheduler(mockUsage, 0, logger)
	assert.Equal(t, 60, scheduler.intervalMin)
}
