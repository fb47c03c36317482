package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/jana/pkg/remote"
)

// ErrSaveFailed matches every error returned by Sync.Save.
var ErrSaveFailed = errors.New("save failed")

// SaveError reports a rejected or undeliverable save. Detail is what the user
// should see: the server's detail for remote errors, the cause otherwise.
type SaveError struct {
	DocumentID string
	Detail     string
	Err        error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save %q failed: %s", e.DocumentID, e.Detail)
}

func (e *SaveError) Is(target error) bool {
	return target == ErrSaveFailed
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Remote is the part of the remote store that ContentSync needs.
type Remote interface {
	GetFileContent(ctx context.Context, sess remote.Session, fileID string) (string, error)
	SaveFileContent(ctx context.Context, sess remote.Session, fileID, content string) error
}

// Sync fetches and persists document bodies. It never touches the tree.
type Sync struct {
	remote Remote
	logger *logrus.Entry
}

// NewSync creates a Sync backed by r.
func NewSync(r Remote, logger *logrus.Entry) *Sync {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Sync{remote: r, logger: logger.WithField("sub-component", "content")}
}

// Fetch retrieves and decodes the body of a document. Errors are transport or
// remote failures only; decoding itself cannot fail.
func (s *Sync) Fetch(ctx context.Context, sess remote.Session, documentID string) (Content, error) {
	raw, err := s.remote.GetFileContent(ctx, sess, documentID)
	if err != nil {
		return Content{}, fmt.Errorf("fetch %q: %w", documentID, err)
	}
	c := Decode(raw)
	s.logger.WithFields(logrus.Fields{
		"document":   documentID,
		"structured": c.IsStructured(),
		"bytes":      len(raw),
	}).Debug("Fetched document content")
	return c, nil
}

// Save serializes c and persists it.
func (s *Sync) Save(ctx context.Context, sess remote.Session, documentID string, c Content) error {
	payload, err := c.Encode()
	if err != nil {
		return &SaveError{DocumentID: documentID, Detail: "encode content: " + err.Error(), Err: err}
	}
	if err := s.remote.SaveFileContent(ctx, sess, documentID, payload); err != nil {
		detail := err.Error()
		var remoteErr *remote.RemoteError
		if errors.As(err, &remoteErr) {
			detail = remoteErr.Detail
		}
		return &SaveError{DocumentID: documentID, Detail: detail, Err: err}
	}
	s.logger.WithFields(logrus.Fields{"document": documentID, "bytes": len(payload)}).Debug("Saved document content")
	return nil
}
