package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "printlapse/0.1.0"

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

func newNtfyService(topic string, timeout time.Duration) *ntfyService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: strings.TrimSpace(topic),
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *ntfyService) JobCompleted(ctx context.Context, artifact Artifact) error {
	subject := strings.TrimSpace(artifact.JobLabel)
	if subject == "" && artifact.JobID != "" {
		subject = "job " + artifact.JobID
	}
	if subject == "" {
		subject = artifact.Name()
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Timelapse ready: %s", subject)
	if artifact.Frames > 0 {
		fmt.Fprintf(&builder, "\n%d frames, %s", artifact.Frames, artifact.Duration.Round(100*time.Millisecond))
	}
	fmt.Fprintf(&builder, "\nFile: %s", artifact.Path)
	return n.send(ctx, payload{
		title:   "printlapse - Timelapse Ready",
		message: builder.String(),
		tags:    []string{"printlapse", "timelapse", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "printlapse - Test",
		message:  "Notification system test",
		tags:     []string{"printlapse", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return failed("build ntfy request: %v", err)
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
		return failed("send ntfy notification: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return failed("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
