package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/turns"
	"github.com/go-go-golems/turnweaver/pkg/turns/serde"
)

const defaultAutosaveFormat = `{{.Year}}/{{.Month}}/{{.Day}}/{{.Time.Format "150405"}}-{{.ConversationID}}.yaml`

type Conversation struct {
	mu sync.RWMutex

	ID        uuid.UUID
	SessionID string

	messages []*turns.Message

	autosaveEnabled bool
	autosaveFormat  string
	autosaveDir     string
	startTime       time.Time
}

var _ Manager = (*Conversation)(nil)

type Option func(*Conversation)

func WithMessages(messages ...*turns.Message) Option {
	return func(c *Conversation) {
		c.messages = append(c.messages, messages...)
	}
}

func WithConversationID(id uuid.UUID) Option {
	return func(c *Conversation) {
		c.ID = id
	}
}

func WithSessionID(sessionID string) Option {
	return func(c *Conversation) {
		c.SessionID = sessionID
	}
}

// WithAutosave writes the whole history after every append. An empty dir defaults
// to ~/.turnweaver/history, an empty format to a date based layout.
func WithAutosave(enabled bool, format string, dir string) Option {
	return func(c *Conversation) {
		c.autosaveEnabled = enabled
		if dir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				homeDir = "."
			}
			dir = filepath.Join(homeDir, ".turnweaver", "history")
		}
		c.autosaveDir = dir
		if format == "" {
			format = defaultAutosaveFormat
		}
		c.autosaveFormat = format
	}
}

func New(options ...Option) *Conversation {
	c := &Conversation{
		ID:        uuid.New(),
		startTime: time.Now(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Append adds finished messages to the history. Nil messages are skipped.
func (c *Conversation) Append(msgs ...*turns.Message) {
	c.mu.Lock()
	for _, m := range msgs {
		if m == nil {
			continue
		}
		c.messages = append(c.messages, m)
	}
	c.mu.Unlock()

	if c.autosaveEnabled {
		if err := c.autosave(); err != nil {
			log.Warn().Err(err).Str("conversation_id", c.ID.String()).Msg("could not autosave conversation")
		}
	}
}

// Messages returns the history in order. The slice is a copy, the messages are not.
func (c *Conversation) Messages() []*turns.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ret := make([]*turns.Message, len(c.messages))
	copy(ret, c.messages)
	return ret
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) Latest() *turns.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// FindSubagent looks up a subagent record by invocation id, newest message first.
func (c *Conversation) FindSubagent(id string) (*turns.Message, *turns.SubagentRecord) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findSubagentLocked(id)
}

func (c *Conversation) findSubagentLocked(id string) (*turns.Message, *turns.SubagentRecord) {
	if id == "" {
		return nil, nil
	}
	for i := len(c.messages) - 1; i >= 0; i-- {
		if r := c.messages[i].FindSubagent(id); r != nil {
			return c.messages[i], r
		}
	}
	return nil, nil
}

// ApplySubagentUpdate applies an update to a finished message. Updates for records
// that are gone are dropped; the result reports whether a record changed.
func (c *Conversation) ApplySubagentUpdate(u turns.SubagentUpdate) bool {
	c.mu.Lock()
	_, rec := c.findSubagentLocked(u.ID)
	if rec == nil {
		c.mu.Unlock()
		log.Debug().Str("subagent_id", u.ID).Msg("dropping update for unknown subagent")
		return false
	}
	changed := rec.ApplyUpdate(u)
	c.mu.Unlock()

	if changed && c.autosaveEnabled {
		if err := c.autosave(); err != nil {
			log.Warn().Err(err).Str("conversation_id", c.ID.String()).Msg("could not autosave conversation")
		}
	}
	return changed
}

// UpdateFromEvent converts a subagent_state event into an update.
func UpdateFromEvent(ev *events.EventSubagentState) turns.SubagentUpdate {
	if ev == nil {
		return turns.SubagentUpdate{}
	}
	return turns.SubagentUpdate{
		ID:          ev.ID,
		Status:      turns.SubagentStatus(strings.ToLower(strings.TrimSpace(ev.Status))),
		AgentID:     ev.AgentID,
		Result:      ev.Result,
		Description: ev.Description,
	}
}

func (c *Conversation) Document() *serde.Document {
	return &serde.Document{
		ConversationID: c.ID.String(),
		SessionID:      c.SessionID,
		Messages:       c.Messages(),
	}
}

func (c *Conversation) SaveToFile(path string) error {
	return c.save(path, serde.Options{})
}

func (c *Conversation) save(path string, opt serde.Options) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d := &serde.Document{
		ConversationID: c.ID.String(),
		SessionID:      c.SessionID,
		Messages:       c.messages,
	}
	return serde.SaveDocumentYAML(path, d, opt)
}

// LoadFromFile restores a conversation saved with SaveToFile.
func LoadFromFile(path string, options ...Option) (*Conversation, error) {
	d, err := serde.LoadDocumentYAML(path)
	if err != nil {
		return nil, err
	}
	c := New(options...)
	if d.ConversationID != "" {
		id, err := uuid.Parse(d.ConversationID)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid conversation id %q", d.ConversationID)
		}
		c.ID = id
	}
	if c.SessionID == "" {
		c.SessionID = d.SessionID
	}
	c.messages = append(c.messages, d.Messages...)
	return c, nil
}

type autosaveData struct {
	Year           string
	Month          string
	Day            string
	Time           time.Time
	ConversationID string
	SessionID      string
}

func (c *Conversation) autosavePath() (string, error) {
	t, err := template.New("autosave").Funcs(sprig.TxtFuncMap()).Parse(c.autosaveFormat)
	if err != nil {
		return "", errors.Wrap(err, "could not parse autosave format")
	}
	data := autosaveData{
		Year:           c.startTime.Format("2006"),
		Month:          c.startTime.Format("01"),
		Day:            c.startTime.Format("02"),
		Time:           c.startTime,
		ConversationID: c.ID.String(),
		SessionID:      c.SessionID,
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrap(err, "could not render autosave path")
	}
	return filepath.Join(c.autosaveDir, sb.String()), nil
}

func (c *Conversation) autosave() error {
	path, err := c.autosavePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "could not create %s", filepath.Dir(path))
	}
	return c.save(path, serde.Options{})
}
