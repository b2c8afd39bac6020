package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/domain"
)

func mustPrompts(t *testing.T) *Prompts {
	t.Helper()
	p, err := DefaultPrompts()
	require.NoError(t, err)
	return p
}

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func toolReply(name, args string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{
				"role":    "assistant",
				"content": nil,
				"tool_calls": []any{map[string]any{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": name, "arguments": args},
				}},
			},
		}},
	})
	return string(body)
}

type recorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *recorder) add(body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

// fakeOpenAI replies with the given bodies in order and records request bodies.
func fakeOpenAI(t *testing.T, replies ...string) (*httptest.Server, *recorder) {
	t.Helper()
	var calls atomic.Int32
	seen := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		seen.add(string(body))
		i := int(calls.Add(1)) - 1
		if i >= len(replies) {
			http.Error(w, `{"error":{"message":"too many calls"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, replies[i])
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newReasoner(t *testing.T, url string) *ToolReasoner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = url
	cfg.Timeout = 5 * time.Second
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return NewToolReasoner(client, mustPrompts(t), analytics.NewRand(7), nil)
}

func TestDefaultPrompts(t *testing.T) {
	p := mustPrompts(t)

	assert.NotEmpty(t, p.SystemPrompt)
	assert.Equal(t, "Based on my analysis!", p.DefaultToolReasoning)
	require.Len(t, p.Tools, 4)

	var names []string
	for _, tool := range p.Tools {
		fn, ok := tool["function"].(map[string]any)
		require.True(t, ok)
		names = append(names, fn["name"].(string))
	}
	assert.ElementsMatch(t, []string{
		ToolFrequentCombinations, ToolWheelingSets, ToolHoroscopeNumbers, ToolUserPerformance,
	}, names)

	_, err := json.Marshal(p.Tools)
	assert.NoError(t, err)
}

func TestLoadPrompts_BadPattern(t *testing.T) {
	_, err := parsePrompts([]byte("system_prompt: hi\nforbidden_patterns:\n  - '(['\n"))
	assert.Error(t, err)

	_, err = parsePrompts([]byte("error_message: x\n"))
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	p := mustPrompts(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"reminder", "Go with 3 and 9! Remember, you can only pick numbers from 1 to 27.", "Go with 3 and 9!"},
		{"parenthetical", "Try 4, 8 (numbers 1-27 only) tonight.", "Try 4, 8 tonight."},
		{"theory", "Hot streak, theory suggests 7. Go.", "Hot streak, 7. Go."},
		{"untouched", "Lock in 1, 2, 3.", "Lock in 1, 2, 3."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Clean(tt.in))
		})
	}
}

func TestContextString(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := ContextString(domain.GameContext{})
		assert.Contains(t, s, "- Timer State: unknown")
		assert.Contains(t, s, "- User's Selected Numbers: none")
		assert.Contains(t, s, "- Balance: unknown credits")
		assert.Contains(t, s, "No draws done yet!")
		assert.Contains(t, s, "Hot Numbers (most frequent): none yet")
		assert.Contains(t, s, "No entries played yet")
		assert.NotContains(t, s, "Recent Patterns")
	})

	t.Run("populated", func(t *testing.T) {
		draws := make([]domain.Draw, 7)
		for i := range draws {
			draws[i] = domain.Draw{Cycle: int64(10 - i), WinningNumbers: domain.Numbers(6, 5, 4, 3, 2, 1), TotalWinnings: 20}
		}
		draws[0].JackpotWon = true

		s := ContextString(domain.GameContext{
			TimerState:      domain.TimerOpen,
			CycleIndex:      11,
			SelectedNumbers: domain.Numbers(1, 2),
			Balance:         990,
			DrawHistory:     draws,
			HotNumbers:      domain.Numbers(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11),
			UserHistory: []domain.WalletEntry{
				{Numbers: domain.Numbers(9, 8, 7, 6, 5, 4), Matches: 3, Winnings: 20},
			},
			RecentPatterns: "Last draw (cycle 10)",
		})
		assert.Contains(t, s, "- Timer State: OPEN")
		assert.Contains(t, s, "- Balance: 990 credits")
		assert.Contains(t, s, "Cycle 10: [1, 2, 3, 4, 5, 6] (JACKPOT!)")
		assert.Contains(t, s, "Cycle 9: [1, 2, 3, 4, 5, 6] (20 credits)")
		assert.NotContains(t, s, "Cycle 5:")
		assert.Contains(t, s, "Hot Numbers (most frequent): 1, 2, 3, 4, 5, 6, 7, 8, 9, 10\n")
		assert.Contains(t, s, "[4, 5, 6, 7, 8, 9] - 3 matches, 20 credits")
		assert.Contains(t, s, "Recent Patterns:\nLast draw (cycle 10)")
	})
}

func TestReason_DirectReply(t *testing.T) {
	content := `{"message":"Strike now!","recommendation":{"numbers":[1,7,14,21,23,27],"type":"hot","reasoning":"on fire"}}`
	srv, seen := fakeOpenAI(t, chatReply(content))
	r := newReasoner(t, srv.URL)

	reply, err := r.Reason(context.Background(), domain.ReasonRequest{Message: "pick for me"})
	require.NoError(t, err)

	assert.Equal(t, "Strike now!", reply.Message)
	require.NotNil(t, reply.Recommendation)
	assert.Equal(t, domain.KindHot, reply.Recommendation.Kind)
	assert.Equal(t, domain.Numbers(1, 7, 14, 21, 23, 27), reply.Recommendation.Numbers.First())

	require.Len(t, seen.all(), 1)
	req := gjson.Parse(seen.all()[0])
	assert.Equal(t, "gpt-4o", req.Get("model").String())
	assert.Equal(t, "auto", req.Get("tool_choice").String())
	assert.Equal(t, int64(500), req.Get("max_tokens").Int())
	assert.Len(t, req.Get("tools").Array(), 4)
	assert.Equal(t, "pick for me", req.Get("messages.2.content").String())
}

func TestReason_PlainTextAndFence(t *testing.T) {
	srv, _ := fakeOpenAI(t,
		chatReply("Just play bold tonight."),
		chatReply("```json\n{\"message\":\"fenced\"}\n```"),
	)
	r := newReasoner(t, srv.URL)

	reply, err := r.Reason(context.Background(), domain.ReasonRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Just play bold tonight.", reply.Message)
	assert.Nil(t, reply.Recommendation)

	reply, err = r.Reason(context.Background(), domain.ReasonRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "fenced", reply.Message)
}

func TestReason_ToolOverridesNumbers(t *testing.T) {
	srv, seen := fakeOpenAI(t,
		toolReply(ToolHoroscopeNumbers, `{"zodiacSign":"Leo"}`),
		chatReply(`{"message":"The lion roars!","recommendation":{"numbers":[2,3,4,5,6,7]}}`),
	)
	r := newReasoner(t, srv.URL)

	reply, err := r.Reason(context.Background(), domain.ReasonRequest{Message: "I'm a leo"})
	require.NoError(t, err)

	assert.Equal(t, "The lion roars!", reply.Message)
	require.NotNil(t, reply.Recommendation)
	assert.False(t, reply.Recommendation.Numbers.Multi)
	assert.Equal(t, domain.Numbers(1, 6, 15, 20, 24, 27), reply.Recommendation.Numbers.First())
	assert.Equal(t, domain.KindToolBased, reply.Recommendation.Kind)
	assert.Equal(t, "Based on my analysis!", reply.Recommendation.Reasoning)

	require.Len(t, seen.all(), 2)
	second := gjson.Parse(seen.all()[1])
	assert.False(t, second.Get("tools").Exists())
	msgs := second.Get("messages").Array()
	require.Len(t, msgs, 5)
	assert.Equal(t, "call_1", msgs[3].Get("tool_calls.0.id").String())
	assert.Equal(t, "tool", msgs[4].Get("role").String())
	assert.Equal(t, "call_1", msgs[4].Get("tool_call_id").String())
	assert.Equal(t, "[1,6,15,20,24,27]", msgs[4].Get("content").String())
}

func TestReason_WheelingIsMultiSet(t *testing.T) {
	srv, _ := fakeOpenAI(t,
		toolReply(ToolWheelingSets, `{"strategy":"basic_8_4","pool":[1,2,3,4,5,6,7,8]}`),
		chatReply(`{"message":"Wheel it!","recommendation":{"type":"wheeling","reasoning":"cover more"}}`),
	)
	r := newReasoner(t, srv.URL)

	reply, err := r.Reason(context.Background(), domain.ReasonRequest{Message: "wheel"})
	require.NoError(t, err)
	require.NotNil(t, reply.Recommendation)
	assert.True(t, reply.Recommendation.Numbers.Multi)
	assert.Len(t, reply.Recommendation.Numbers.Sets, 4)
	assert.Equal(t, domain.KindWheeling, reply.Recommendation.Kind)
	assert.Equal(t, "cover more", reply.Recommendation.Reasoning)
}

func TestReason_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
		}))
		t.Cleanup(srv.Close)

		_, err := newReasoner(t, srv.URL).Reason(context.Background(), domain.ReasonRequest{Message: "x"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
		assert.Equal(t, "slow down", apiErr.Message)
		assert.Equal(t, "first call", apiErr.Phase)
	})

	t.Run("unknown tool", func(t *testing.T) {
		srv, seen := fakeOpenAI(t, toolReply("getLuckyCat", `{}`))
		_, err := newReasoner(t, srv.URL).Reason(context.Background(), domain.ReasonRequest{Message: "x"})
		assert.ErrorContains(t, err, "getLuckyCat")
		assert.Len(t, seen.all(), 1)
	})

	t.Run("no choices", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, `{"choices":[]}`)
		_, err := newReasoner(t, srv.URL).Reason(context.Background(), domain.ReasonRequest{Message: "x"})
		assert.Error(t, err)
	})
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(DefaultConfig())
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	rng := analytics.NewRand(1)
	draws := []domain.Draw{
		{Cycle: 2, WinningNumbers: domain.Numbers(1, 2, 3, 4, 5, 6)},
		{Cycle: 1, WinningNumbers: domain.Numbers(1, 2, 10, 11, 12, 13)},
	}
	gctx := domain.GameContext{DrawHistory: draws}

	out, err := dispatch(rng, toolCall{Name: ToolFrequentCombinations, Arguments: `{"type":"pair","status":"hot","count":1}`}, gctx)
	require.NoError(t, err)
	assert.True(t, out.Multi)
	assert.Equal(t, [][]domain.Number{domain.Numbers(1, 2)}, out.Sets)

	_, err = dispatch(rng, toolCall{Name: ToolFrequentCombinations, Arguments: `{"type":"quad","status":"hot"}`}, gctx)
	assert.Error(t, err)

	_, err = dispatch(rng, toolCall{Name: ToolWheelingSets, Arguments: `{"strategy":"basic_9_9","pool":[]}`}, gctx)
	assert.Error(t, err)

	out, err = dispatch(rng, toolCall{Name: ToolHoroscopeNumbers, Arguments: `{"zodiacSign":"unknown"}`}, gctx)
	require.NoError(t, err)
	assert.True(t, out.numbers().Empty())
	assert.Equal(t, "[]", out.JSON())

	out, err = dispatch(rng, toolCall{Name: ToolUserPerformance}, gctx)
	require.NoError(t, err)
	assert.Len(t, out.Sets[0], domain.PickSize)

	_, err = dispatch(rng, toolCall{Name: ToolHoroscopeNumbers, Arguments: `{bad`}, gctx)
	assert.Error(t, err)
}
