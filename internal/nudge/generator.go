package nudge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	charentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/character/entity"
	chatentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/llm"
)

const (
	historyLimit      = 6
	historyCharBudget = 1200
)

const instruction = "Send exactly one short re-engagement ping to the user to nudge them to continue chatting. " +
	"Length: 6-12 words. Natural, warm, human-like. One action like **smiles** is okay. " +
	"No questions unless playful and brief. Avoid repetitive phrasing or meta lines."

var fallbackLines = []string{
	"%s here. Miss me? **smiles**",
	"Got a minute? I was thinking about you. **grins**",
	"Wanna pick up where we left off? **tilts head**",
	"I found something fun to chat about. Come? **waves**",
	"Hey, you. I've got a thought. **leans closer**",
}

// HistoryStore returns the latest messages of a session, newest first.
type HistoryStore interface {
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]chatentity.Message, error)
}

// Generator writes nudge text with the configured completion backend.
type Generator struct {
	llm     llm.Completer
	history HistoryStore
	random  Random
	logger  *zap.SugaredLogger
}

func NewGenerator(completer llm.Completer, history HistoryStore, random Random, logger *zap.SugaredLogger) *Generator {
	return &Generator{llm: completer, history: history, random: random, logger: logger}
}

func systemPrompt(persona *charentity.Character) string {
	var b strings.Builder
	if persona != nil && persona.Name != "" {
		fmt.Fprintf(&b, "You are %s.", persona.Name)
		if p := strings.TrimSpace(persona.Persona); p != "" {
			b.WriteString(" " + p)
		}
	} else {
		b.WriteString("You are a friendly character in an ongoing chat.")
	}
	b.WriteString(" Stay in character.")
	return b.String()
}

// trimHistory keeps the newest messages that fit the character budget and
// returns them oldest first. msgs must be newest first.
func trimHistory(msgs []chatentity.Message) []llm.Message {
	kept := make([]llm.Message, 0, historyLimit)
	used := 0
	for _, m := range msgs {
		if len(kept) == historyLimit {
			break
		}
		var role string
		switch m.Role {
		case chatentity.RoleUser:
			role = llm.RoleUser
		case chatentity.RoleAssistant:
			role = llm.RoleAssistant
		default:
			continue
		}
		n := len([]rune(m.Content))
		if used+n > historyCharBudget {
			break
		}
		used += n
		kept = append(kept, llm.Message{Role: role, Content: m.Content})
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// BuildPrompt assembles the completion request for a session.
func (g *Generator) BuildPrompt(ctx context.Context, sessionID string, persona *charentity.Character) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt(persona)}}
	recent, err := g.history.RecentMessages(ctx, sessionID, historyLimit)
	if err != nil {
		g.logger.Debugw("load nudge history failed", "session_id", sessionID, "err", err)
	}
	msgs = append(msgs, trimHistory(recent)...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: instruction})
}

// Generate returns the completion, or "" when the backend fails.
func (g *Generator) Generate(ctx context.Context, sessionID, userID string, persona *charentity.Character) string {
	text, err := g.llm.Complete(ctx, g.BuildPrompt(ctx, sessionID, persona))
	if err != nil {
		g.logger.Warnw("nudge generation failed", "session_id", sessionID, "user_id", userID, "err", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Fallback picks one of the template lines. The first names the character,
// or says "Hey" when name is empty.
func (g *Generator) Fallback(name string) string {
	if name == "" {
		name = "Hey"
	}
	line := fallbackLines[g.random.Int64N(int64(len(fallbackLines)))]
	if strings.Contains(line, "%s") {
		return fmt.Sprintf(line, name)
	}
	return line
}
