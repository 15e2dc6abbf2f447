package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voiceclip/internal/config"
	"voiceclip/internal/interval"
)

const userAgent = "voiceclip/0.1"

// BatchNotice summarizes a finished batch run.
type BatchNotice struct {
	RunID     string
	Succeeded int
	Failed    int
	Matched   float64
	Elapsed   time.Duration
}

// ShortsNotice summarizes a finished shorts run.
type ShortsNotice struct {
	Source   string
	Rendered int
	Failed   int
	Duration float64
}

// Service is the notification surface used by commands.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, notice BatchNotice) error
	NotifyShortsCompleted(ctx context.Context, notice ShortsNotice) error
	NotifyError(ctx context.Context, err error, label string) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, notice BatchNotice) error {
	elapsed := max(notice.Elapsed.Round(time.Second), 0)
	data := payload{
		title: "voiceclip - Batch Complete",
		message: fmt.Sprintf("Batch %s: %d succeeded, %d failed, %s matched in %s",
			shortRunID(notice.RunID), notice.Succeeded, notice.Failed, interval.FormatClock(notice.Matched), elapsed),
		tags: []string{"voiceclip", "batch", "completed"},
	}
	if notice.Failed > 0 {
		data.title = "voiceclip - Batch Complete (with errors)"
		data.tags = append(data.tags, "warning")
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyShortsCompleted(ctx context.Context, notice ShortsNotice) error {
	data := payload{
		title: "voiceclip - Shorts Ready",
		message: fmt.Sprintf("🎬 %d shorts from %s (%s)",
			notice.Rendered, strings.TrimSpace(notice.Source), interval.FormatClock(notice.Duration)),
		tags: []string{"voiceclip", "shorts", "completed"},
	}
	if notice.Failed > 0 {
		data.message += fmt.Sprintf(", %d failed", notice.Failed)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, label string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if label = strings.TrimSpace(label); label != "" {
		builder.WriteString(" with ")
		builder.WriteString(label)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "voiceclip - Error",
		message:  builder.String(),
		tags:     []string{"voiceclip", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "voiceclip - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"voiceclip", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyBatchCompleted(context.Context, BatchNotice) error   { return nil }
func (noopService) NotifyShortsCompleted(context.Context, ShortsNotice) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
