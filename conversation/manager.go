// Package conversation implements the agent loop: it owns conversation
// lifecycle, runs chat turns against a model provider, dispatches requested
// tool calls through the MCP router, and persists the resulting history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"umsagent/config"
	"umsagent/mcp"
	"umsagent/model"
	"umsagent/storage"
)

// ErrConversationNotFound is returned when a turn or read references an id
// the store does not hold.
var ErrConversationNotFound = errors.New("conversation not found")

const (
	defaultMaxIterations = 8
	defaultTitle         = "New conversation"
	persistTimeout       = 10 * time.Second
)

// ToolRouter is the slice of the MCP router the manager needs. Satisfied by
// *mcp.Router.
type ToolRouter interface {
	Tools() []mcptypes.Tool
	Dispatch(ctx context.Context, name string, args map[string]any) (string, error)
}

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	// MaxIterations caps provider rounds per turn so a model that keeps
	// requesting tools cannot loop forever.
	MaxIterations int
	// SystemPrompt seeds the first message of every new conversation.
	SystemPrompt string
	// ToolTimeout bounds each individual tool invocation.
	ToolTimeout time.Duration
}

// Manager coordinates provider, tools, and storage for chat turns. Turns on
// the same conversation are serialized; different conversations run
// concurrently.
type Manager struct {
	provider model.Provider
	router   ToolRouter
	store    storage.Store
	opts     Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(provider model.Provider, router ToolRouter, store storage.Store, opts Options) *Manager {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	return &Manager{
		provider: provider,
		router:   router,
		store:    store,
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockConversation serializes turns per conversation id. The lock table only
// grows, but entries are one mutex per conversation ever touched by this
// process, which is negligible next to the conversations themselves.
func (m *Manager) lockConversation(id string) func() {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Create starts an empty conversation and persists it.
func (m *Manager) Create(ctx context.Context, title string) (*model.Conversation, error) {
	if title == "" {
		title = defaultTitle
	}
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("created conversation %s (%q)", conv.ID, conv.Title)
	}
	return conv, nil
}

// List returns summaries of all conversations, most recently updated first.
func (m *Manager) List(ctx context.Context) ([]model.ConversationSummary, error) {
	return m.store.ListConversations(ctx)
}

// Get returns the full conversation, or ErrConversationNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := m.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv, nil
}

// Delete removes a conversation. Deleting an absent id returns
// ErrConversationNotFound.
func (m *Manager) Delete(ctx context.Context, id string) error {
	deleted, err := m.store.DeleteConversation(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return nil
}

// Chat runs one blocking turn and returns the final assistant message.
func (m *Manager) Chat(ctx context.Context, id string, content string) (*model.Message, error) {
	return m.runTurn(ctx, id, content, nil, false)
}

// ChatStream runs one turn, forwarding stream events to callback as they
// arrive. The returned message is the final assistant message; it is also
// delivered through the callback as text deltas followed by a done event.
func (m *Manager) ChatStream(ctx context.Context, id string, content string, callback model.StreamCallback) (*model.Message, error) {
	return m.runTurn(ctx, id, content, callback, true)
}

func (m *Manager) runTurn(ctx context.Context, id string, content string, callback model.StreamCallback, streaming bool) (*model.Message, error) {
	unlock := m.lockConversation(id)
	defer unlock()

	conv, err := m.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	// emit forwards to the callback until the consumer reports an error,
	// after which events are dropped but the turn keeps running.
	emit := func(ev model.StreamEvent) {
		if callback == nil {
			return
		}
		if err := callback(ev); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("conversation %s: stream consumer gone: %v", id, err)
			}
			callback = nil
		}
	}
	emit(model.StreamEvent{Type: model.EventConversationID, ConversationID: id})

	if len(conv.Messages) == 0 {
		conv.Messages = append(conv.Messages, model.NewSystemMessage(m.opts.SystemPrompt))
	}
	user := model.NewUserMessage(model.RedactCardNumbers(content))
	conv.Messages = append(conv.Messages, user)

	final, turnErr := m.loop(ctx, conv, emit, streaming)

	// Persistence must survive a disconnected requester: completed rounds
	// are durable even when the turn itself failed or was cancelled.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	conv.UpdatedAt = time.Now().UTC()
	if err := m.store.SaveConversation(saveCtx, conv); err != nil {
		if turnErr == nil {
			turnErr = err
		} else {
			log.Printf("conversation %s: persist after failed turn: %v", id, err)
		}
	}

	if turnErr != nil {
		emit(model.StreamEvent{Type: model.EventError, Err: turnErr})
		return nil, turnErr
	}
	emit(model.StreamEvent{Type: model.EventDone, ConversationID: id})
	return final, nil
}

// loop runs provider rounds until the model answers without tool calls or
// the iteration cap is hit. It appends every assistant and tool message to
// conv; the caller persists whatever accumulated, success or not.
func (m *Manager) loop(ctx context.Context, conv *model.Conversation, emit func(model.StreamEvent), streaming bool) (*model.Message, error) {
	for i := 0; i < m.opts.MaxIterations; i++ {
		assistant, err := m.completeRound(ctx, conv.Messages, emit, streaming)
		if err != nil {
			var parseErr *model.ToolCallParseError
			if errors.As(err, &parseErr) && parseErr.CallID != "" {
				// Feed the malformed call back as a failed tool result so
				// the model can retry with valid arguments.
				call := model.ToolCall{ID: parseErr.CallID, Name: parseErr.Tool}
				conv.Messages = append(conv.Messages,
					model.NewAssistantMessage("", []model.ToolCall{call}),
					model.NewToolMessage(call, fmt.Sprintf("Error: tool arguments were not valid JSON: %v. Retry the call with valid arguments.", parseErr.Err)),
				)
				if config.DebugLog != nil {
					config.DebugLog.Printf("conversation %s: recovering from unparsable arguments for %s", conv.ID, parseErr.Tool)
				}
				continue
			}
			return nil, err
		}

		assistant.Content = model.RedactCardNumbers(assistant.Content)
		conv.Messages = append(conv.Messages, assistant)

		if len(assistant.ToolCalls) == 0 {
			return &conv.Messages[len(conv.Messages)-1], nil
		}

		results := m.dispatchToolCalls(ctx, conv.ID, assistant.ToolCalls)
		conv.Messages = append(conv.Messages, results...)
	}

	// Iteration cap reached. End the turn with a degraded final answer
	// instead of an error so the conversation stays usable.
	log.Printf("conversation %s: iteration cap %d reached, ending turn", conv.ID, m.opts.MaxIterations)
	degraded := model.NewAssistantMessage(
		"I was not able to finish this request within the allowed number of tool steps. Here is what I gathered so far; please narrow the request and try again.",
		nil,
	)
	conv.Messages = append(conv.Messages, degraded)
	emit(model.StreamEvent{Type: model.EventTextDelta, Text: degraded.Content})
	return &conv.Messages[len(conv.Messages)-1], nil
}

func (m *Manager) completeRound(ctx context.Context, messages []model.Message, emit func(model.StreamEvent), streaming bool) (model.Message, error) {
	tools := m.router.Tools()
	if streaming {
		return m.provider.Stream(ctx, messages, tools, func(ev model.StreamEvent) error {
			emit(ev)
			return nil
		})
	}
	return m.provider.Complete(ctx, messages, tools)
}

// dispatchToolCalls runs every call of one assistant round concurrently and
// returns one tool message per call, in request order. Failures become error
// tool messages rather than aborting the turn. Tool call stream events are
// emitted by the provider as the calls arrive, not here.
func (m *Manager) dispatchToolCalls(ctx context.Context, convID string, calls []model.ToolCall) []model.Message {
	// Calls already handed to a tool run to completion even if the
	// requester disconnects; their results must reach the store.
	ctx = context.WithoutCancel(ctx)

	results := make([]model.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			results[i] = m.invokeTool(ctx, convID, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (m *Manager) invokeTool(ctx context.Context, convID string, call model.ToolCall) model.Message {
	if m.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := m.router.Dispatch(ctx, call.Name, call.Arguments)
	if err != nil {
		var (
			timeoutErr *mcp.TimeoutError
			unknownErr *mcp.UnknownToolError
		)
		switch {
		case errors.As(err, &timeoutErr):
			log.Printf("conversation %s: tool %s timed out after %s", convID, call.Name, time.Since(start).Round(time.Millisecond))
		case errors.As(err, &unknownErr):
			log.Printf("conversation %s: model requested unknown tool %s", convID, call.Name)
		default:
			log.Printf("conversation %s: tool %s failed: %v", convID, call.Name, err)
		}
		return model.NewToolMessage(call, model.RedactCardNumbers("Error: "+err.Error()))
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("conversation %s: tool %s completed in %s", convID, call.Name, time.Since(start).Round(time.Millisecond))
	}
	return model.NewToolMessage(call, model.RedactCardNumbers(result))
}
