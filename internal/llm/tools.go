package llm

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/tidwall/gjson"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/metrics"
)

// Tool names advertised to the model.
const (
	ToolFrequentCombinations = "getFrequentCombinations"
	ToolWheelingSets         = "generateWheelingSets"
	ToolHoroscopeNumbers     = "getHoroscopeNumbers"
	ToolUserPerformance      = "analyzeUserPerformance"
)

// toolOutput is what one tool produced. Multi tools return a list of sets.
type toolOutput struct {
	Sets  [][]domain.Number
	Multi bool
}

func (o toolOutput) numbers() domain.RecommendedNumbers {
	if o.Multi {
		return domain.MultiSet(o.Sets)
	}
	if len(o.Sets) == 0 {
		return domain.SingleSet(nil)
	}
	return domain.SingleSet(o.Sets[0])
}

// JSON is the tool message content returned to the model.
func (o toolOutput) JSON() string {
	var v any = o.Sets
	if !o.Multi {
		if len(o.Sets) == 0 {
			v = []domain.Number{}
		} else {
			v = o.Sets[0]
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// runTool executes one model tool call against the request's game context.
func runTool(rng *rand.Rand, call toolCall, gctx domain.GameContext) (toolOutput, error) {
	out, err := dispatch(rng, call, gctx)
	metrics.RecordToolCall(call.Name, err)
	return out, err
}

func dispatch(rng *rand.Rand, call toolCall, gctx domain.GameContext) (toolOutput, error) {
	args := gjson.Parse(call.Arguments)
	if call.Arguments != "" && !gjson.Valid(call.Arguments) {
		return toolOutput{}, fmt.Errorf("tool %s: arguments are not JSON", call.Name)
	}

	switch call.Name {
	case ToolFrequentCombinations:
		size, err := analytics.ComboSize(args.Get("type").String())
		if err != nil {
			return toolOutput{}, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		order, err := analytics.ParseOrder(args.Get("status").String())
		if err != nil {
			return toolOutput{}, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		limit := analytics.DefaultComboLimit
		if c := args.Get("count"); c.Exists() && c.Int() > 0 {
			limit = int(c.Int())
		}
		combos := analytics.FrequentCombinations(gctx.DrawHistory, size, order, limit)
		sets := make([][]domain.Number, 0, len(combos))
		for _, c := range combos {
			sets = append(sets, c.Numbers)
		}
		return toolOutput{Sets: sets, Multi: true}, nil

	case ToolWheelingSets:
		strategy, err := analytics.ParseStrategy(args.Get("strategy").String())
		if err != nil {
			return toolOutput{}, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		var pool []domain.Number
		args.Get("pool").ForEach(func(_, v gjson.Result) bool {
			pool = append(pool, domain.Number(v.Int()))
			return true
		})
		tickets := analytics.WheelingSets(strategy, pool)
		sets := make([][]domain.Number, 0, len(tickets))
		for _, t := range tickets {
			sets = append(sets, []domain.Number(t))
		}
		return toolOutput{Sets: sets, Multi: true}, nil

	case ToolHoroscopeNumbers:
		nums := analytics.HoroscopeNumbers(args.Get("zodiacSign").String())
		return toolOutput{Sets: [][]domain.Number{nums}}, nil

	case ToolUserPerformance:
		pick := analytics.AnalyzeUserPerformance(rng, gctx.UserHistory, gctx.DrawHistory)
		return toolOutput{Sets: [][]domain.Number{[]domain.Number(pick)}}, nil
	}
	return toolOutput{}, fmt.Errorf("unknown tool %q", call.Name)
}
