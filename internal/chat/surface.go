package chat

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/servimatch/chatwire/internal/attachment"
	"github.com/servimatch/chatwire/internal/cache"
	"github.com/servimatch/chatwire/internal/protocol"
	"github.com/servimatch/chatwire/internal/quote"
	"github.com/servimatch/chatwire/internal/recovery"
	"github.com/servimatch/chatwire/internal/status"
)

// Role is which side of the transaction the local user acts as.
type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
)

func (r Role) Sender() protocol.Sender {
	if r == RoleProvider {
		return protocol.SenderProvider
	}
	return protocol.SenderRequester
}

// transport is the slice of Conn the surface drives.
type transport interface {
	Connect(ctx context.Context, sessionID int64) error
	Teardown()
	State() State
	SendFrame(protocol.Frame) error
}

// quoteSubmitter is the REST collaborator for the provider quote action.
type quoteSubmitter interface {
	Submit(ctx context.Context, requestID int64, q quote.Quote) error
}

// Outgoing is composer input for one send: text, an attachment, or both.
type Outgoing struct {
	Text     string
	Filename string
	MimeType string
	Data     []byte
}

// Surface orchestrates one chat: it gates composition on access state and
// connection state, validates and encodes outgoing sends, mirrors outgoing
// attachments into the local cache, and resolves attachments for rendering.
type Surface struct {
	conn   transport
	msgs   *Log
	store  cache.Store
	quotes quoteSubmitter
	role   Role

	// The composer and the event goroutine call in concurrently; mu
	// guards the fields below, the only ones that change after
	// construction.
	mu      sync.Mutex
	session int64
	access  status.Access
	pending []string // provisional cache ids awaiting the server echo, FIFO
}

func NewSurface(conn transport, msgs *Log, store cache.Store, quotes quoteSubmitter, role Role) *Surface {
	return &Surface{conn: conn, msgs: msgs, store: store, quotes: quotes, role: role}
}

// Open evaluates access for the session and connects the channel when the
// chat is visible (writable or read-only). Disabled access never dials and
// tears down anything left from a previous session.
func (s *Surface) Open(ctx context.Context, sessionID int64, st status.Status) (status.Access, error) {
	acc := status.Evaluate(st)
	s.mu.Lock()
	s.session = sessionID
	s.access = acc
	s.pending = nil
	s.mu.Unlock()

	if !acc.Enabled {
		s.conn.Teardown()
		return acc, nil
	}
	return acc, s.conn.Connect(ctx, sessionID)
}

// SetStatus recomputes access on a status transition. The channel survives
// transitions between visible states (writable ⇄ read-only); only a
// transition into a disabled state tears it down.
func (s *Surface) SetStatus(st status.Status) status.Access {
	acc := status.Evaluate(st)
	s.mu.Lock()
	s.access = acc
	s.mu.Unlock()
	if !acc.Enabled {
		s.conn.Teardown()
	}
	return acc
}

func (s *Surface) Access() status.Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *Surface) SessionID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Messages snapshots the log for rendering.
func (s *Surface) Messages() []protocol.ChatMessage { return s.msgs.Messages() }

// CanCompose reports whether the composer is shown and usable: access must
// be writable and the channel connected.
func (s *Surface) CanCompose() bool {
	acc := s.Access()
	return acc.Enabled && !acc.ReadOnly && s.conn.State() == Connected
}

// Send validates, encodes and transmits one message. Validation failures
// return before anything reaches the transport, so the caller's composer
// state survives untouched. On success, an attachment payload is mirrored
// into the local cache under a provisional key, promoted when the echo
// arrives.
func (s *Surface) Send(out Outgoing) error {
	if !s.CanCompose() {
		return ErrNotWritable
	}
	if out.Text == "" && len(out.Data) == 0 {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(out.Text) > protocol.MaxContentLen {
		return ErrContentTooLong
	}

	var att *protocol.AttachmentPayload
	if len(out.Data) > 0 {
		enc, err := attachment.Encode(out.Filename, out.MimeType, out.Data)
		if err != nil {
			return err
		}
		att = &protocol.AttachmentPayload{
			Filename: enc.Name,
			MimeType: enc.MimeType,
			Payload:  enc.Payload,
			Size:     enc.Size,
		}
	}

	session := s.SessionID()
	frame, err := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{
		SessionID:  session,
		Content:    out.Text,
		Attachment: att,
	})
	if err != nil {
		return err
	}
	if err := s.conn.SendFrame(frame); err != nil {
		return err
	}

	if att != nil {
		id := cache.NewProvisionalID()
		s.store.PutProvisional(id, session, []byte(att.Payload))
		s.mu.Lock()
		s.pending = append(s.pending, id)
		s.mu.Unlock()
	}
	return nil
}

// HandleEvent lets the surface observe the conn event stream. It reconciles
// provisional cache entries: when our own echo arrives carrying an
// attachment, the oldest pending provisional is promoted to the
// server-assigned message id. An echo whose attachment metadata the server
// stripped still promotes, recognized by the sentinel content or the bare
// empty shape.
func (s *Surface) HandleEvent(ev Event) {
	if ev.Type != EventMessage || ev.Message == nil {
		return
	}
	m := ev.Message
	if m.Sender != s.role.Sender() {
		return
	}
	parsed := attachment.ParseMetadata(m.Metadata)
	if parsed.Kind == attachment.KindNone && !recovery.Expected(*m, parsed) {
		return
	}

	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	id := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()
	s.store.Promote(id, cache.Key{SessionID: m.SessionID, MessageID: m.ID})
}

// ResolveAttachment produces the renderable attachment for a message:
// parsed metadata when usable, else the cache recovery heuristic, else
// nothing (the message renders without an attachment block).
func (s *Surface) ResolveAttachment(m protocol.ChatMessage) attachment.Attachment {
	att := attachment.ParseMetadata(m.Metadata)
	if att.Renderable() {
		return att
	}
	if recovery.Expected(m, att) {
		if rec, ok := recovery.Recover(s.store, m.SessionID, m.ID); ok {
			return rec
		}
	}
	return attachment.Attachment{}
}

// SubmitQuote is the provider-only business action. It rides REST, not the
// realtime channel, and its outcome never touches connection or log state.
func (s *Surface) SubmitQuote(ctx context.Context, amount decimal.Decimal, note string) error {
	if s.role != RoleProvider || !s.CanCompose() {
		return ErrQuoteNotAllowed
	}
	return s.quotes.Submit(ctx, s.SessionID(), quote.Quote{Amount: amount, Note: note})
}
