package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// ExportService renders a room's messages as JSON, Markdown, or CSV, always
// in ascending seq order.
type ExportService struct {
	rooms    domain.RoomRepository
	messages domain.MessageRepository
}

func NewExportService(rooms domain.RoomRepository, messages domain.MessageRepository) *ExportService {
	return &ExportService{rooms: rooms, messages: messages}
}

type ExportInput struct {
	Format          string
	Filter          domain.MessageFilter
	IncludeMetadata bool
}

// Export returns the rendered bytes and their content type.
func (s *ExportService) Export(ctx context.Context, roomID string, in ExportInput) ([]byte, string, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, "", err
	}
	// Without an explicit limit an export covers the whole room.
	filter := in.Filter
	if filter.Limit == 0 {
		filter.Limit = -1
	}
	msgs, err := s.messages.ListMessages(ctx, roomID, filter)
	if err != nil {
		return nil, "", err
	}

	switch in.Format {
	case FormatJSON, "":
		body, err := renderJSON(room, msgs, in.IncludeMetadata)
		return body, "application/json", err
	case FormatMarkdown:
		return renderMarkdown(room, msgs), "text/markdown; charset=utf-8", nil
	case FormatCSV:
		body, err := renderCSV(msgs, in.IncludeMetadata)
		return body, "text/csv; charset=utf-8", err
	default:
		return nil, "", fmt.Errorf("format must be json, markdown, or csv: %w", domain.ErrInvalidInput)
	}
}

type exportedMessage struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	Sender     string          `json:"sender"`
	SenderType *string         `json:"sender_type,omitempty"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
	EditedAt   *time.Time      `json:"edited_at,omitempty"`
	ReplyTo    *string         `json:"reply_to,omitempty"`
	Pinned     bool            `json:"pinned,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

func renderJSON(room *domain.Room, msgs []*domain.Message, includeMetadata bool) ([]byte, error) {
	out := struct {
		RoomID   string            `json:"room_id"`
		RoomName string            `json:"room_name"`
		Messages []exportedMessage `json:"messages"`
	}{RoomID: room.ID, RoomName: room.Name, Messages: make([]exportedMessage, 0, len(msgs))}

	for _, m := range msgs {
		e := exportedMessage{
			Seq:        m.Seq,
			ID:         m.ID,
			Sender:     m.Sender,
			SenderType: m.SenderType,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
			EditedAt:   m.EditedAt,
			ReplyTo:    m.ReplyTo,
			Pinned:     m.Pinned(),
		}
		if includeMetadata {
			e.Metadata = m.Metadata
		}
		out.Messages = append(out.Messages, e)
	}
	return json.MarshalIndent(out, "", "  ")
}

// renderMarkdown groups messages by calendar date with pin/edit/reply markers.
func renderMarkdown(room *domain.Room, msgs []*domain.Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n", room.Name)

	var lastDate string
	for _, m := range msgs {
		date := m.CreatedAt.Format("2006-01-02")
		if date != lastDate {
			fmt.Fprintf(&b, "\n## %s\n\n", date)
			lastDate = date
		}

		fmt.Fprintf(&b, "- **%s** (%s)", m.Sender, m.CreatedAt.Format("15:04:05"))
		if m.Pinned() {
			b.WriteString(" [pinned]")
		}
		if m.EditedAt != nil {
			b.WriteString(" [edited]")
		}
		if m.ReplyTo != nil {
			fmt.Fprintf(&b, " [reply to %s]", *m.ReplyTo)
		}
		fmt.Fprintf(&b, ": %s\n", m.Content)
	}
	return b.Bytes()
}

func renderCSV(msgs []*domain.Message, includeMetadata bool) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)

	header := []string{"seq", "id", "sender", "sender_type", "content", "created_at", "edited_at", "reply_to", "pinned"}
	if includeMetadata {
		header = append(header, "metadata")
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, m := range msgs {
		row := []string{
			fmt.Sprintf("%d", m.Seq),
			m.ID,
			m.Sender,
			deref(m.SenderType),
			m.Content,
			m.CreatedAt.Format(time.RFC3339),
			formatOptTime(m.EditedAt),
			deref(m.ReplyTo),
			fmt.Sprintf("%t", m.Pinned()),
		}
		if includeMetadata {
			row = append(row, string(m.Metadata))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return b.Bytes(), nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
