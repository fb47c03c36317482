package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/jana/pkg/tree"
)

// Session is the bearer credential for one user. It is passed explicitly to
// every call rather than read from ambient state.
type Session struct {
	Token    string
	Username string
}

// DeleteResult is the remote store's answer to a delete request.
type DeleteResult struct {
	Message   string `json:"message"`
	MovedPath string `json:"moved_path"`
}

// Client is the remote workspace store.
type Client interface {
	ListTree(ctx context.Context, sess Session) ([]tree.Node, error)
	GetFileContent(ctx context.Context, sess Session, fileID string) (string, error)
	SaveFileContent(ctx context.Context, sess Session, fileID, content string) error
	AddFolder(ctx context.Context, sess Session, parentID, name string) (tree.Node, error)
	AddFile(ctx context.Context, sess Session, parentID, name string) (tree.Node, error)
	DeleteFolder(ctx context.Context, sess Session, folderID string) (DeleteResult, error)
	DeleteFile(ctx context.Context, sess Session, fileID string) (DeleteResult, error)
	Login(ctx context.Context, username, password string) (Session, error)
	Verify(ctx context.Context, sess Session) (string, error)
}

// Options tunes an HTTPClient. Zero values fall back to defaults.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     *logrus.Entry
}

// HTTPClient talks to the remote store over HTTP/JSON.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *logrus.Entry
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the store at baseURL.
func NewHTTPClient(baseURL string, opts Options) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		logger:     logger.WithField("sub-component", "remote"),
	}
}

func (c *HTTPClient) ListTree(ctx context.Context, sess Session) ([]tree.Node, error) {
	const op = "list tree"
	payload, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/api/tree", sess: &sess, idempotent: true})
	if err != nil {
		return nil, err
	}
	if err := validateTree(payload); err != nil {
		return nil, &SchemaError{Op: op, Err: err}
	}
	var nodes []tree.Node
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return nil, &SchemaError{Op: op, Err: err}
	}
	return nodes, nil
}

func (c *HTTPClient) GetFileContent(ctx context.Context, sess Session, fileID string) (string, error) {
	const op = "get file content"
	payload, err := c.do(ctx, call{
		op:         op,
		method:     http.MethodPost,
		path:       "/api/get-file-content",
		sess:       &sess,
		body:       map[string]string{"file_path": fileID},
		idempotent: true,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", &SchemaError{Op: op, Err: err}
	}
	if out.Content == nil {
		return "", nil
	}
	return *out.Content, nil
}

func (c *HTTPClient) SaveFileContent(ctx context.Context, sess Session, fileID, content string) error {
	_, err := c.do(ctx, call{
		op:         "save file content",
		method:     http.MethodPost,
		path:       "/api/save-file-content",
		sess:       &sess,
		body:       map[string]string{"file_path": fileID, "content": content},
		idempotent: true,
	})
	return err
}

func (c *HTTPClient) AddFolder(ctx context.Context, sess Session, parentID, name string) (tree.Node, error) {
	body := struct {
		ParentID   *string `json:"parent_id"`
		FolderName string  `json:"folder_name"`
	}{FolderName: name}
	if parentID != "" {
		body.ParentID = &parentID
	}
	return c.create(ctx, call{op: "add folder", method: http.MethodPost, path: "/api/add-folder", sess: &sess, body: body})
}

func (c *HTTPClient) AddFile(ctx context.Context, sess Session, parentID, name string) (tree.Node, error) {
	body := struct {
		ParentID string `json:"parent_id"`
		FileName string `json:"file_name"`
	}{ParentID: parentID, FileName: name}
	return c.create(ctx, call{op: "add file", method: http.MethodPost, path: "/api/add-file", sess: &sess, body: body})
}

func (c *HTTPClient) DeleteFolder(ctx context.Context, sess Session, folderID string) (DeleteResult, error) {
	return c.remove(ctx, call{
		op:     "delete folder",
		method: http.MethodDelete,
		path:   "/api/delete-folder",
		sess:   &sess,
		body:   map[string]string{"folder_id": folderID},
	})
}

func (c *HTTPClient) DeleteFile(ctx context.Context, sess Session, fileID string) (DeleteResult, error) {
	return c.remove(ctx, call{
		op:     "delete file",
		method: http.MethodDelete,
		path:   "/api/delete-file",
		sess:   &sess,
		body:   map[string]string{"file_id": fileID},
	})
}

// Login exchanges a username and password for a bearer token.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (Session, error) {
	const op = "login"
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	payload, err := c.do(ctx, call{op: op, method: http.MethodPost, path: "/login", form: form})
	if err != nil {
		return Session{}, err
	}
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return Session{}, &SchemaError{Op: op, Err: err}
	}
	if out.AccessToken == "" {
		return Session{}, &SchemaError{Op: op, Err: fmt.Errorf("missing access_token")}
	}
	if out.TokenType != "" && !strings.EqualFold(out.TokenType, "bearer") {
		return Session{}, &SchemaError{Op: op, Err: fmt.Errorf("unsupported token type %q", out.TokenType)}
	}
	return Session{Token: out.AccessToken, Username: username}, nil
}

// Verify asks the store whether the session token is still valid and returns
// the user it belongs to.
func (c *HTTPClient) Verify(ctx context.Context, sess Session) (string, error) {
	const op = "verify token"
	payload, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/protected", sess: &sess, idempotent: true})
	if err != nil {
		return "", err
	}
	var out struct {
		User string `json:"user"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", &SchemaError{Op: op, Err: err}
	}
	return out.User, nil
}

func (c *HTTPClient) create(ctx context.Context, req call) (tree.Node, error) {
	payload, err := c.do(ctx, req)
	if err != nil {
		return tree.Node{}, err
	}
	if err := validateNode(payload); err != nil {
		return tree.Node{}, &SchemaError{Op: req.op, Err: err}
	}
	var node tree.Node
	if err := json.Unmarshal(payload, &node); err != nil {
		return tree.Node{}, &SchemaError{Op: req.op, Err: err}
	}
	return node, nil
}

func (c *HTTPClient) remove(ctx context.Context, req call) (DeleteResult, error) {
	payload, err := c.do(ctx, req)
	if err != nil {
		return DeleteResult{}, err
	}
	var out DeleteResult
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &out); err != nil {
			return DeleteResult{}, &SchemaError{Op: req.op, Err: err}
		}
	}
	return out, nil
}

type call struct {
	op         string
	method     string
	path       string
	sess       *Session
	body       any
	form       url.Values
	idempotent bool
}

// do sends the request and returns the body of a 2xx answer. Only idempotent
// calls are retried, on transport errors, 429 and 5xx.
func (c *HTTPClient) do(ctx context.Context, req call) ([]byte, error) {
	var bodyBytes []byte
	contentType := ""
	switch {
	case req.form != nil:
		bodyBytes = []byte(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		var err error
		bodyBytes, err = json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", req.op, err)
		}
		contentType = "application/json"
	}

	maxRetries := 0
	if req.idempotent {
		maxRetries = c.maxRetries
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", req.op, err)
		}
		if req.sess != nil && req.sess.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+req.sess.Token)
		}
		httpReq.Header.Set("X-Correlation-Id", uuid.NewString())
		httpReq.Header.Set("Accept", "application/json")
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if attempt < maxRetries && ctx.Err() == nil {
				c.logger.WithFields(logrus.Fields{"op": req.op, "attempt": attempt + 1}).WithError(err).Debug("Request failed, retrying")
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, &NetworkError{Op: req.op, Err: waitErr}
				}
				continue
			}
			return nil, &NetworkError{Op: req.op, Err: err}
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, &NetworkError{Op: req.op, Err: readErr}
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return payload, nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < maxRetries {
			c.logger.WithFields(logrus.Fields{"op": req.op, "status": resp.StatusCode, "attempt": attempt + 1}).Debug("Transient response, retrying")
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, &NetworkError{Op: req.op, Err: waitErr}
			}
			continue
		}

		return nil, &RemoteError{Op: req.op, StatusCode: resp.StatusCode, Detail: errorDetail(resp.StatusCode, payload)}
	}
}

// errorDetail extracts the "detail" field of an error body. Validation errors
// carry a list there, which is kept as raw JSON.
func errorDetail(status int, payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && len(body.Detail) > 0 && string(body.Detail) != "null" {
		var text string
		if err := json.Unmarshal(body.Detail, &text); err == nil {
			return text
		}
		return string(body.Detail)
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unknown error"
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
