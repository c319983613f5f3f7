package nudge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	charentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/character/entity"
	chatentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/llm"
)

func msg(role, content string, idx int) chatentity.Message {
	return chatentity.Message{SessionID: "s1", Role: role, Content: content, OrderIndex: idx}
}

func TestTrimHistoryKeepsNewestOldestFirst(t *testing.T) {
	var newestFirst []chatentity.Message
	for i := 8; i >= 1; i-- {
		role := chatentity.RoleUser
		if i%2 == 0 {
			role = chatentity.RoleAssistant
		}
		newestFirst = append(newestFirst, msg(role, strings.Repeat("x", i), i))
	}
	got := trimHistory(newestFirst)
	require.Len(t, got, historyLimit)
	assert.Equal(t, "xxx", got[0].Content)
	assert.Equal(t, llm.RoleUser, got[0].Role)
	assert.Equal(t, strings.Repeat("x", 8), got[5].Content)
	assert.Equal(t, llm.RoleAssistant, got[5].Role)
}

func TestTrimHistoryRespectsBudget(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := trimHistory([]chatentity.Message{
		msg(chatentity.RoleUser, long+"3", 3),
		msg(chatentity.RoleAssistant, long+"2", 2),
		msg(chatentity.RoleUser, long+"1", 1),
	})
	require.Len(t, got, 2)
	assert.Equal(t, long+"2", got[0].Content)
	assert.Equal(t, long+"3", got[1].Content)

	total := 0
	for _, m := range got {
		total += len([]rune(m.Content))
	}
	assert.LessOrEqual(t, total, historyCharBudget)
}

func TestTrimHistorySkipsOtherRoles(t *testing.T) {
	got := trimHistory([]chatentity.Message{
		msg("system", "internal", 3),
		msg(chatentity.RoleUser, "hi", 2),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Content)
	assert.Empty(t, trimHistory(nil))
}

func TestBuildPrompt(t *testing.T) {
	chats := newMemChats()
	chats.messages["s1"] = []chatentity.Message{
		msg(chatentity.RoleUser, "hello", 1),
		msg(chatentity.RoleAssistant, "hey there", 2),
	}
	g := NewGenerator(&fakeLLM{}, chats, fixedRandom{}, zaptest.NewLogger(t).Sugar())

	got := g.BuildPrompt(context.Background(), "s1", &charentity.Character{Name: "Aria", Persona: "  Playful and curious. "})
	require.Len(t, got, 4)
	assert.Equal(t, llm.RoleSystem, got[0].Role)
	assert.Equal(t, "You are Aria. Playful and curious. Stay in character.", got[0].Content)
	assert.NotContains(t, got[0].Content, instruction)
	assert.Equal(t, "hello", got[1].Content)
	assert.Equal(t, "hey there", got[2].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: instruction}, got[3])

	got = g.BuildPrompt(context.Background(), "empty", nil)
	require.Len(t, got, 2)
	assert.Equal(t, "You are a friendly character in an ongoing chat. Stay in character.", got[0].Content)
	assert.Equal(t, instruction, got[1].Content)
}

func TestGenerate(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	completer := &fakeLLM{text: "  Hey you, I saved you a seat. **smiles**\n"}
	g := NewGenerator(completer, newMemChats(), fixedRandom{}, logger)

	assert.Equal(t, "Hey you, I saved you a seat. **smiles**", g.Generate(context.Background(), "s1", "u1", nil))
	assert.Equal(t, 1, completer.calls)

	completer.err = errors.New("upstream 503")
	assert.Equal(t, "", g.Generate(context.Background(), "s1", "u1", nil))
}

func TestFallbackLines(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	for i := range fallbackLines {
		g := NewGenerator(&fakeLLM{}, newMemChats(), fixedRandom{n: int64(i)}, logger)
		for _, name := range []string{"Aria", ""} {
			line := g.Fallback(name)
			words := len(strings.Fields(line))
			assert.GreaterOrEqual(t, words, 4, line)
			assert.LessOrEqual(t, words, 15, line)
			assert.NotContains(t, line, "%s")
		}
	}

	g := NewGenerator(&fakeLLM{}, newMemChats(), fixedRandom{n: 0}, logger)
	assert.Equal(t, "Aria here. Miss me? **smiles**", g.Fallback("Aria"))
	assert.Equal(t, "Hey here. Miss me? **smiles**", g.Fallback(""))
}
