package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/teams-assistant-bot/internal/storage"
)

// Fixed user-facing replies. The relay never propagates an error past
// its boundary; every failure degrades to one of these strings.
const (
	fallbackRunFailed   = "Entschuldigung, es gab einen Fehler bei der Verarbeitung Ihrer Anfrage."
	fallbackUnavailable = "Es tut mir leid, ich kann momentan nicht antworten. Bitte versuchen Sie es später erneut."
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxWait      = 2 * time.Minute
)

var errRunNotCompleted = errors.New("run did not complete")

// Relay forwards a user message to the configured assistant on that
// user's thread and returns the assistant's reply text.
type Relay struct {
	client       Client
	assistantID  string
	threads      storage.ThreadStore
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger

	// userLocks serializes relays per user: at most one in-flight
	// relay per thread, and no duplicate thread creation on
	// concurrent first contact.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func New(client Client, assistantID string, threads storage.ThreadStore, pollInterval, maxWait time.Duration, logger *zap.Logger) *Relay {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Relay{
		client:       client,
		assistantID:  assistantID,
		threads:      threads,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       logger,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// GetResponse relays one user message and returns the reply text. It
// never returns an error: a failed or expired run yields a fixed
// apology, and any other failure yields a generic unavailable message.
func (r *Relay) GetResponse(ctx context.Context, userID, message string) string {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.maxWait)
	defer cancel()

	reply, err := r.relay(ctx, userID, message)
	switch {
	case err == nil:
		return reply
	case errors.Is(err, errRunNotCompleted), errors.Is(err, context.DeadlineExceeded):
		return fallbackRunFailed
	default:
		r.logger.Error("error in assistant response",
			zap.String("user_id", userID),
			zap.Error(err))
		return fallbackUnavailable
	}
}

func (r *Relay) relay(ctx context.Context, userID, message string) (string, error) {
	threadID, err := r.resolveThread(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve thread: %w", err)
	}

	// Add message to thread
	_, err = r.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}

	// Run assistant
	run, err := r.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: r.assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	// Wait for completion
	for run.Status == openai.RunStatusQueued || run.Status == openai.RunStatusInProgress {
		select {
		case <-ctx.Done():
			r.logger.Warn("gave up waiting for run",
				zap.String("user_id", userID),
				zap.String("thread_id", threadID),
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)))
			return "", errRunNotCompleted
		case <-time.After(r.pollInterval):
		}

		run, err = r.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return "", fmt.Errorf("failed to retrieve run: %w", err)
		}
	}

	if run.Status != openai.RunStatusCompleted {
		r.logger.Error("run finished with non-completed status",
			zap.String("user_id", userID),
			zap.String("thread_id", threadID),
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)))
		return "", errRunNotCompleted
	}

	// Return latest assistant message
	limit := 1
	messages, err := r.client.ListMessage(ctx, threadID, &limit, nil, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}
	return replyText(messages)
}

func (r *Relay) resolveThread(ctx context.Context, userID string) (string, error) {
	threadID, err := r.threads.GetThread(ctx, userID)
	if err != nil {
		return "", err
	}
	if threadID != "" {
		return threadID, nil
	}

	thread, err := r.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", err
	}
	if err := r.threads.SaveThread(ctx, userID, thread.ID); err != nil {
		return "", err
	}

	r.logger.Info("created new thread for user",
		zap.String("user_id", userID),
		zap.String("thread_id", thread.ID))
	return thread.ID, nil
}

func (r *Relay) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, exists := r.userLocks[userID]
	if !exists {
		lock = &sync.Mutex{}
		r.userLocks[userID] = lock
	}
	return lock
}

func replyText(messages openai.MessagesList) (string, error) {
	if len(messages.Messages) == 0 {
		return "", errors.New("thread has no messages")
	}
	for _, part := range messages.Messages[0].Content {
		if part.Text != nil {
			return part.Text.Value, nil
		}
	}
	return "", errors.New("latest message has no text content")
}
