package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"umsagent/conversation"
	"umsagent/model"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Stream bool `json:"stream"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server-sent chunks mirror the OpenAI streaming wire shape so existing chat
// UIs can consume them unchanged.
type sseDelta struct {
	Content string `json:"content,omitempty"`
}

type sseChoice struct {
	Delta        sseDelta `json:"delta"`
	Index        int      `json:"index"`
	FinishReason *string  `json:"finish_reason"`
}

type sseChunk struct {
	Choices []sseChoice `json:"choices"`
}

func textChunk(content string) sseChunk {
	return sseChunk{Choices: []sseChoice{{Delta: sseDelta{Content: content}}}}
}

func finishChunk() sseChunk {
	stop := "stop"
	return sseChunk{Choices: []sseChoice{{FinishReason: &stop}}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAgentError maps manager failures to HTTP statuses.
func writeAgentError(w http.ResponseWriter, err error) {
	var provErr *model.ModelProviderError
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &provErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	resp["conversation_manager_initialized"] = s.agent != nil
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := s.agent.Create(r.Context(), req.Title)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.agent.List(r.Context())
	if err != nil {
		writeAgentError(w, err)
		return
	}
	if summaries == nil {
		summaries = []model.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.agent.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.agent.Delete(r.Context(), id); err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "conversation " + id + " deleted"})
}

// handleChat serves both POST /conversations/{id}/chat and POST /chat. The
// latter creates a conversation when the body names none.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message.Content == "" {
		writeError(w, http.StatusBadRequest, "message.content is required")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = req.ConversationID
	}
	if id == "" {
		conv, err := s.agent.Create(r.Context(), "")
		if err != nil {
			writeAgentError(w, err)
			return
		}
		id = conv.ID
	}

	if req.Stream {
		s.streamChat(w, r, id, req.Message.Content)
		return
	}

	final, err := s.agent.Chat(r.Context(), id, req.Message.Content)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{ConversationID: id, Content: final.Content})
}

// streamChat forwards the turn as server-sent events: the conversation id
// first, OpenAI-shaped content chunks, a finish_reason chunk, then [DONE].
// Turn failures after the stream opened become an error event.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, id, content string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeEvent := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := s.agent.ChatStream(r.Context(), id, content, func(ev model.StreamEvent) error {
		// A closed client stops forwarding; the turn itself finishes.
		if err := r.Context().Err(); err != nil {
			return err
		}

		switch ev.Type {
		case model.EventConversationID:
			return writeEvent(map[string]string{"conversation_id": ev.ConversationID})
		case model.EventTextDelta:
			return writeEvent(textChunk(ev.Text))
		case model.EventToolCall:
			return writeEvent(map[string]string{"type": "tool_call", "name": ev.ToolCall.Name})
		case model.EventError:
			return writeEvent(errorResponse{Error: ev.Err.Error()})
		case model.EventDone:
			if err := writeEvent(finishChunk()); err != nil {
				return err
			}
			if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// The error event already went out through the callback; the
		// stream just ends here.
		log.Printf("streamed turn on conversation %s failed: %v", id, err)
	}
}
