package repository

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"moneycase/internal/model"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrInvalidPageToken = errors.New("invalid page token")

// PageRequest asks for one page of a listing. An empty Token means the first page.
type PageRequest struct {
	Token string
	Size  int
}

func (p PageRequest) normalizedSize() int {
	if p.Size < 1 {
		return DefaultPageSize
	}
	if p.Size > MaxPageSize {
		return MaxPageSize
	}
	return p.Size
}

// SessionPage is one page of sessions ordered by OpenedAt DESC, ID DESC.
// NextPageToken is empty on the last page.
type SessionPage struct {
	Sessions      []model.CashSession
	NextPageToken string
}

// pageCursor is the keyset position after which the next page starts.
type pageCursor struct {
	OpenedAt time.Time `json:"t"`
	ID       uuid.UUID `json:"id"`
}

func encodePageToken(s model.CashSession) string {
	raw, _ := json.Marshal(pageCursor{OpenedAt: s.OpenedAt.UTC(), ID: s.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodePageToken(token string) (*pageCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == uuid.Nil {
		return nil, ErrInvalidPageToken
	}
	return &c, nil
}

// newSessionPage trims the look-ahead row and derives the next token.
func newSessionPage(rows []model.CashSession, size int) *SessionPage {
	page := &SessionPage{Sessions: rows}
	if len(rows) > size {
		page.Sessions = rows[:size]
		page.NextPageToken = encodePageToken(rows[size-1])
	}
	if page.Sessions == nil {
		page.Sessions = []model.CashSession{}
	}
	return page
}

// sessionLess orders newest-opened first with the id as tie-break.
func sessionLess(a, b *model.CashSession) bool {
	if !a.OpenedAt.Equal(b.OpenedAt) {
		return a.OpenedAt.After(b.OpenedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

// afterCursor reports whether s sorts strictly after the cursor position.
func (c *pageCursor) afterCursor(s *model.CashSession) bool {
	if s.OpenedAt.Before(c.OpenedAt) {
		return true
	}
	return s.OpenedAt.Equal(c.OpenedAt) && bytes.Compare(s.ID[:], c.ID[:]) < 0
}
