package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"spendmind/internal/advisor"
	"spendmind/internal/core"
	"spendmind/internal/log"
)

const (
	defaultReductionRate = 10
	maxDocumentBytes     = 10 << 20
)

var ErrMissingDocument = errors.New("multipart field \"document\" is required")

type adviseRequest struct {
	ReductionRate Text `json:"reduction_rate"`
}

// handleAdvise returns a savings plan. It only fails for a bad rate or a
// missing session: model trouble yields the deterministic plan.
func (s *Server) handleAdvise(w http.ResponseWriter, r *http.Request) {
	const op = "advise"
	var req adviseRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, op, err)
			return
		}
	}
	rate, err := parseRate(req.ReductionRate.String(), defaultReductionRate)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	plan := s.advisor.Advise(r.Context(), st.Snapshot(), decimal.NewFromInt(int64(rate)))
	NewJSONResponse().Data(plan).Write(w)
}

// chatFor returns the signed-in owner's conversation, starting one if needed.
func (s *Server) chatFor(owner string) *advisor.Chat {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	if c, ok := s.chats[owner]; ok {
		return c
	}
	c := advisor.NewChat(s.llm, s.snapshot, s.advOpts)
	s.chats[owner] = c
	return c
}

func (s *Server) snapshot() core.Snapshot {
	if st, ok := s.stores.Current(); ok {
		return st.Snapshot()
	}
	return core.Snapshot{}
}

func (s *Server) currentChat(w http.ResponseWriter, r *http.Request, op string) (*advisor.Chat, bool) {
	st, ok := s.currentStore(w, r, op)
	if !ok {
		return nil, false
	}
	return s.chatFor(st.Owner()), true
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.currentChat(w, r, "chat history")
	if !ok {
		return
	}
	NewJSONResponse().Data(map[string]any{"messages": c.Messages()}).Write(w)
}

type chatRequest struct {
	Message string `json:"message"`
}

// handleChatSend posts a user message. A model failure still answers 200
// with the reply flagged failed.
func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	const op = "chat"
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	c, ok := s.currentChat(w, r, op)
	if !ok {
		return
	}
	reply, err := c.Send(r.Context(), sanitizeInput(req.Message))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Data(reply).Write(w)
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	c, ok := s.currentChat(w, r, "chat reset")
	if !ok {
		return
	}
	c.Reset()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type ocrResponse struct {
	advisor.ReceiptFields
	// CategoryID is set when the extracted category matches one of the
	// owner's categories by name.
	CategoryID string `json:"category_id,omitempty"`
}

// handleOCR reads a receipt uploaded as multipart field "document" and
// returns the fields a new expense can be prefilled with.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	const op = log.OpExtract
	st, ok := s.currentStore(w, r, op)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes+1<<10)
	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		s.fail(w, r, op, core.Validation(op, err))
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		s.fail(w, r, op, core.Validation(op, ErrMissingDocument))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, op, core.Validation(op, err))
		return
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	fields, err := advisor.ExtractReceipt(r.Context(), s.llm, advisor.Attachment{MimeType: mime, Data: data}, s.advOpts)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	resp := ocrResponse{ReceiptFields: fields}
	if fields.Category != nil {
		for _, c := range st.Categories() {
			if strings.EqualFold(c.Name, *fields.Category) {
				resp.CategoryID = c.ID
				break
			}
		}
	}
	NewJSONResponse().Data(resp).Write(w)
}
