package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ShellClient queries a FaaS shell state machine over REST. The commit
// count report runs a github-plus-spreadsheet workflow remotely and
// returns the aggregated result row.
type ShellClient struct {
	httpClient *http.Client
	baseURL    string
	user       string
	secret     string
	log        *zap.Logger
}

// NewShellClient creates a client for the FaaS shell at baseURL,
// authenticated with HTTP basic credentials.
func NewShellClient(baseURL, user, secret string, log *zap.Logger) *ShellClient {
	return &ShellClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		user:       user,
		secret:     secret,
		log:        log,
	}
}

// CommitReport is one row of the commit count report.
type CommitReport struct {
	Author     string
	Repository string
	Commits    int
}

type shellReportInput struct {
	Input struct {
		Github struct {
			Target string `json:"target"`
			Owner  string `json:"owner"`
			Name   string `json:"name"`
			Since  string `json:"since"`
			Until  string `json:"until"`
		} `json:"github"`
	} `json:"input"`
}

type shellReportReply struct {
	Error  string `json:"error"`
	Output struct {
		Github struct {
			Output struct {
				Values [][]any `json:"values"`
			} `json:"output"`
		} `json:"github"`
	} `json:"output"`
}

// CommitCountReport runs the commit_count_report state machine for the
// repository and date window and returns the first result row.
func (c *ShellClient) CommitCountReport(ctx context.Context, owner, repository string, since, until time.Time) (CommitReport, error) {
	var input shellReportInput
	input.Input.Github.Target = owner
	input.Input.Github.Owner = owner
	input.Input.Github.Name = repository
	input.Input.Github.Since = since.UTC().Format(time.RFC3339)
	input.Input.Github.Until = until.UTC().Format(time.RFC3339)

	body, err := json.Marshal(input)
	if err != nil {
		return CommitReport{}, fmt.Errorf("failed to marshal report input: %w", err)
	}
	url := c.baseURL + "/statemachine/commit_count_report.json?blocking=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return CommitReport{}, fmt.Errorf("failed to create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.secret)
	c.log.Debug("Calling FaaS shell", zap.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CommitReport{}, fmt.Errorf("failed to call FaaS shell: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return CommitReport{}, fmt.Errorf("FaaS shell failed with status %d: %s", resp.StatusCode, string(detail))
	}

	var reply shellReportReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return CommitReport{}, fmt.Errorf("failed to decode report reply: %w", err)
	}
	if reply.Error != "" {
		return CommitReport{}, fmt.Errorf("commit count report failed: %s", reply.Error)
	}
	if len(reply.Output.Github.Output.Values) == 0 {
		return CommitReport{}, fmt.Errorf("commit count report returned no rows")
	}
	return parseReportRow(reply.Output.Github.Output.Values[0])
}

// parseReportRow maps a spreadsheet row of the form
// [author, target, repository, since, until, commits] onto a report.
func parseReportRow(row []any) (CommitReport, error) {
	if len(row) < 6 {
		return CommitReport{}, fmt.Errorf("commit count report row has %d columns, want 6", len(row))
	}
	report := CommitReport{}
	report.Author, _ = row[0].(string)
	report.Repository, _ = row[2].(string)
	switch commits := row[5].(type) {
	case float64:
		report.Commits = int(commits)
	case string:
		if _, err := fmt.Sscanf(commits, "%d", &report.Commits); err != nil {
			return CommitReport{}, fmt.Errorf("invalid commit count %q", commits)
		}
	default:
		return CommitReport{}, fmt.Errorf("invalid commit count column %v", row[5])
	}
	return report, nil
}
