package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/ashureev/pick27/internal/assistant"
	"github.com/ashureev/pick27/internal/domain"
)

const (
	contextDraws   = 5
	contextEntries = 3
	contextHotCold = 10
)

// ToolReasoner implements assistant.Reasoner with a two-phase chat
// completion: the first call may request tools, the second turns the tool
// output into the reply.
type ToolReasoner struct {
	client  *Client
	prompts *Prompts
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewToolReasoner returns a reasoner using client and prompts. rng feeds the
// performance analysis tool.
func NewToolReasoner(client *Client, prompts *Prompts, rng *rand.Rand, logger *slog.Logger) *ToolReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolReasoner{client: client, prompts: prompts, rng: rng, logger: logger}
}

// ErrorMessage is the reply shown to the player when Reason fails.
func (r *ToolReasoner) ErrorMessage() string {
	return r.prompts.ErrorMessage
}

// Reason answers req. Tool numbers, when any tool produced some, replace the
// numbers the model wrote.
func (r *ToolReasoner) Reason(ctx context.Context, req domain.ReasonRequest) (*domain.ReasonResponse, error) {
	messages := []any{
		message{Role: "system", Content: r.prompts.SystemPrompt},
		message{Role: "system", Content: ContextString(req.Context)},
		message{Role: "user", Content: req.Message},
	}

	first, err := r.client.complete(ctx, "first call", messages, r.prompts.Tools)
	if err != nil {
		return nil, err
	}
	if len(first.ToolCalls) == 0 {
		return r.decode(first.Content), nil
	}

	messages = append(messages, first.Raw)
	var override *toolOutput
	for _, call := range first.ToolCalls {
		out, err := r.run(call, req.Context)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("tool call executed", "tool", call.Name, "sets", len(out.Sets))
		messages = append(messages, message{Role: "tool", ToolCallID: call.ID, Content: out.JSON()})
		if !out.numbers().Empty() {
			override = &out
		}
	}

	second, err := r.client.complete(ctx, "second call", messages, nil)
	if err != nil {
		return nil, err
	}
	reply := r.decode(second.Content)
	if override != nil {
		rec := domain.Recommendation{}
		if reply.Recommendation != nil {
			rec = *reply.Recommendation
		}
		rec.Numbers = override.numbers()
		if rec.Kind == "" {
			rec.Kind = domain.KindToolBased
		}
		if rec.Reasoning == "" {
			rec.Reasoning = r.prompts.DefaultToolReasoning
		}
		reply.Recommendation = &rec
	}
	return reply, nil
}

func (r *ToolReasoner) run(call toolCall, gctx domain.GameContext) (toolOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return runTool(r.rng, call, gctx)
}

func (r *ToolReasoner) decode(content string) *domain.ReasonResponse {
	cleaned := r.prompts.Clean(stripFence(content))
	return assistant.DecodeReply([]byte(cleaned))
}

// stripFence removes a markdown code fence around a JSON reply.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ContextString renders the game context as the second system message.
func ContextString(c domain.GameContext) string {
	var b strings.Builder

	timer := string(c.TimerState)
	if timer == "" {
		timer = "unknown"
	}
	balance := "unknown"
	if c.Balance != 0 {
		balance = fmt.Sprint(c.Balance)
	}

	b.WriteString("Current Game Context:\n")
	fmt.Fprintf(&b, "- Timer State: %s\n", timer)
	fmt.Fprintf(&b, "- Current Cycle: %d\n", c.CycleIndex)
	fmt.Fprintf(&b, "- User's Selected Numbers: %s\n", joinOr(c.SelectedNumbers, "none"))
	fmt.Fprintf(&b, "- Balance: %s credits\n\n", balance)

	b.WriteString("Recent Draw Results:\n")
	if len(c.DrawHistory) == 0 {
		b.WriteString("No draws done yet!\n")
	}
	for i, d := range c.DrawHistory {
		if i == contextDraws {
			break
		}
		result := fmt.Sprintf("%d credits", d.TotalWinnings)
		if d.JackpotWon {
			result = "JACKPOT!"
		}
		fmt.Fprintf(&b, "Cycle %d: [%s] (%s)\n", d.Cycle,
			joinOr(domain.SortedCopy(d.WinningNumbers), "Unknown"), result)
	}

	fmt.Fprintf(&b, "\nHot Numbers (most frequent): %s\n", joinOr(head(c.HotNumbers, contextHotCold), "none yet"))
	fmt.Fprintf(&b, "Cold Numbers (overdue): %s\n\n", joinOr(head(c.ColdNumbers, contextHotCold), "none yet"))

	b.WriteString("User's Recent Entries:\n")
	if len(c.UserHistory) == 0 {
		b.WriteString("No entries played yet\n")
	}
	for i, e := range c.UserHistory {
		if i == contextEntries {
			break
		}
		fmt.Fprintf(&b, "[%s] - %d matches, %d credits\n",
			joinOr(domain.SortedCopy(e.Numbers), "Unknown"), e.Matches, e.Winnings)
	}

	if c.RecentPatterns != "" {
		fmt.Fprintf(&b, "\nRecent Patterns:\n%s\n", c.RecentPatterns)
	}
	return b.String()
}

func head(nums []domain.Number, n int) []domain.Number {
	if len(nums) > n {
		return nums[:n]
	}
	return nums
}

func joinOr(nums []domain.Number, empty string) string {
	if len(nums) == 0 {
		return empty
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(int(n))
	}
	return strings.Join(parts, ", ")
}
