package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/jana/pkg/content"
	"github.com/grovetools/jana/pkg/journal"
	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/session"
	"github.com/grovetools/jana/pkg/tree"
)

// Service is the core workspace service
type Service struct {
	Config    *Config
	Tree      *tree.Store
	Remote    remote.Client
	Content   *content.Sync
	Selection *Selection
	Gateway   *Gateway
	Journal   *journal.Journal
	Logger    *logrus.Entry
}

// Config holds service configuration
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	DataDir     string
	SessionFile string
	Editor      string
	// JournalDSN is a sqlite path or postgres:// URL. Empty means
	// journal.db inside DataDir.
	JournalDSN string
	// Token, when set, is used instead of the session file.
	Token string
}

// New creates a service talking to the remote store at config.BaseURL.
func New(config *Config, logger *logrus.Entry) (*Service, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	client := remote.NewHTTPClient(config.BaseURL, remote.Options{
		Timeout:    config.Timeout,
		MaxRetries: config.MaxRetries,
		Logger:     logger,
	})

	dsn := config.JournalDSN
	if dsn == "" {
		dsn = filepath.Join(config.DataDir, "journal.db")
	}
	j, err := journal.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return NewWithClient(config, client, j, logger), nil
}

// NewWithClient assembles a service around an existing client. j may be nil,
// in which case mutations are not journaled.
func NewWithClient(config *Config, client remote.Client, j *journal.Journal, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	store := tree.NewStore()
	cs := content.NewSync(client, logger)
	selection := NewSelection(store, cs, logger)

	var rec Recorder
	if j != nil {
		rec = j
	}
	return &Service{
		Config:    config,
		Tree:      store,
		Remote:    client,
		Content:   cs,
		Selection: selection,
		Gateway:   NewGateway(store, client, selection, rec, logger),
		Journal:   j,
		Logger:    logger,
	}
}

// Close releases the journal.
func (s *Service) Close() error {
	if s.Journal == nil {
		return nil
	}
	return s.Journal.Close()
}

// Session returns the configured token or, failing that, the persisted login.
func (s *Service) Session() (remote.Session, error) {
	if s.Config.Token != "" {
		return remote.Session{Token: s.Config.Token}, nil
	}
	f, err := session.Load(s.Config.SessionFile)
	if err != nil {
		return remote.Session{}, err
	}
	return f.Session(), nil
}

// Login exchanges credentials for a token and persists it.
func (s *Service) Login(ctx context.Context, username, password string) (remote.Session, error) {
	sess, err := s.Remote.Login(ctx, username, password)
	if err != nil {
		return remote.Session{}, err
	}
	f := session.File{BaseURL: s.Config.BaseURL, Username: sess.Username, Token: sess.Token, TokenType: "bearer"}
	if err := session.Save(s.Config.SessionFile, f); err != nil {
		return remote.Session{}, err
	}
	s.Logger.WithField("user", sess.Username).Info("Logged in")
	return sess, nil
}

// Logout forgets the persisted login.
func (s *Service) Logout() error {
	return session.Remove(s.Config.SessionFile)
}

// Whoami asks the remote store who the persisted token belongs to.
func (s *Service) Whoami(ctx context.Context) (string, error) {
	sess, err := s.Session()
	if err != nil {
		return "", err
	}
	return s.Remote.Verify(ctx, sess)
}

// Open refreshes the tree and selects id.
func (s *Service) Open(ctx context.Context, sess remote.Session, id string) (tree.Node, error) {
	if err := s.Gateway.Refresh(ctx, sess); err != nil {
		return tree.Node{}, err
	}
	if err := s.Selection.Select(ctx, sess, id); err != nil {
		return tree.Node{}, err
	}
	n, _ := s.Selection.Current()
	return n, nil
}

// OpenForWrite is Open for callers about to replace a document's content.
// Once the document is selected, a store failure while fetching its current
// body is logged and the node is returned.
func (s *Service) OpenForWrite(ctx context.Context, sess remote.Session, id string) (tree.Node, error) {
	if err := s.Gateway.Refresh(ctx, sess); err != nil {
		return tree.Node{}, err
	}
	if err := s.SelectForWrite(ctx, sess, id); err != nil {
		return tree.Node{}, err
	}
	n, ok := s.Selection.Current()
	if !ok {
		return tree.Node{}, fmt.Errorf("open %q: %w", id, tree.ErrNotFound)
	}
	return n, nil
}

// SelectForWrite selects id like Selection.Select but tolerates a store
// failure fetching its content as long as id ends up selected.
func (s *Service) SelectForWrite(ctx context.Context, sess remote.Session, id string) error {
	err := s.Selection.Select(ctx, sess, id)
	if err == nil {
		return nil
	}
	if !remote.IsStoreFailure(err) || s.Selection.SelectedID() != id {
		return err
	}
	s.Logger.WithError(err).WithField("document", id).Warn("Could not fetch current content, continuing without it")
	return nil
}

// Save persists c as the body of the selected document and journals it.
func (s *Service) Save(ctx context.Context, sess remote.Session, c content.Content) error {
	id, err := s.Selection.Save(ctx, sess, c)
	if err != nil {
		return err
	}
	if s.Journal != nil {
		if _, err := s.Journal.Record(ctx, journal.Entry{Op: journal.OpSave, NodeID: id, User: sess.Username}); err != nil {
			s.Logger.WithError(err).WithField("document", id).Warn("Failed to journal save")
		}
	}
	return nil
}

// History lists journaled mutations, newest first.
func (s *Service) History(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	if s.Journal == nil {
		return nil, nil
	}
	return s.Journal.List(ctx, f)
}
