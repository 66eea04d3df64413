package advisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendmind/internal/cache"
	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/metrics"
)

// DefaultTimeout bounds every model call.
const DefaultTimeout = 15 * time.Second

// Options tune the orchestrator. Zero values pick the defaults.
type Options struct {
	Timeout       time.Duration
	CacheSize     int
	CacheTTL      time.Duration
	MonthlyIncome decimal.NullDecimal
	Logger        *log.Logger
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 128
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = log.Default(log.ComponentAdvisor)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Advisor produces plans. It never fails: when the model is missing, slow or
// answers badly the deterministic fallback is returned instead.
type Advisor struct {
	llm    LLM
	plans  *cache.LRUCache[Plan]
	opts   Options
	logger *log.Logger
}

// New returns an Advisor backed by llm, which may be nil.
func New(llm LLM, opts Options) *Advisor {
	opts = opts.withDefaults()
	return &Advisor{
		llm:    llm,
		plans:  cache.NewLRUCache[Plan](opts.CacheSize, opts.CacheTTL),
		opts:   opts,
		logger: opts.Logger,
	}
}

// Cache exposes the plan cache so it can be swept.
func (a *Advisor) Cache() *cache.LRUCache[Plan] { return a.plans }

// Advise returns a plan for snap with the given reduction target in percent.
func (a *Advisor) Advise(ctx context.Context, snap core.Snapshot, rate decimal.Decimal) Plan {
	if rate.IsNegative() {
		rate = decimal.Zero
	}
	req := NewRequest(snap, rate)
	key := Fingerprint(req)
	if plan, ok := a.plans.Get(key); ok {
		return plan
	}

	plan, err := a.ask(ctx, req)
	if err == nil {
		a.plans.Set(key, plan)
		a.logger.Info("advisor plan generated", log.FieldPlanSource, plan.Source, log.FieldCount, len(plan.Recommendations))
		return plan
	}

	errType := log.ErrorTypeAdvisor
	if core.IsKind(err, core.KindTimeout) {
		errType = log.ErrorTypeTimeout
	}
	a.logger.Failure(ctx, "advisor unavailable, using fallback", log.OpAdvise, errType, err)
	return Fallback(FallbackInput{
		Goals:                snap.Goals,
		Expenses:             metrics.InMonth(snap.Expenses, a.opts.Now()),
		Categories:           snap.Categories,
		ReductionRatePercent: rate,
		MonthlyIncome:        a.opts.MonthlyIncome,
		Currency:             snap.Settings.Currency,
	})
}

func (a *Advisor) ask(ctx context.Context, req Request) (Plan, error) {
	if a.llm == nil {
		return Plan{}, core.Advisor(log.OpAdvise, errors.New("no model configured"))
	}
	raw, err := generate(ctx, a.llm, a.opts.Timeout, Prompt{
		System: advisorSystemPrompt,
		Turns:  []Turn{{Role: RoleUser, Content: advisorContext(req)}},
		JSON:   true,
	})
	if err != nil {
		return Plan{}, err
	}
	plan, err := parseLenient(raw)
	if err != nil {
		return Plan{}, core.Advisor(log.OpParse, err)
	}
	return plan, nil
}

// generate calls llm with a deadline. The call is abandoned when the deadline
// passes even if the model ignores its context.
func generate(ctx context.Context, llm LLM, timeout time.Duration, p Prompt) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := llm.Generate(cctx, p)
		done <- result{text, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-cctx.Done():
		res.err = cctx.Err()
	}
	if res.err == nil {
		return res.text, nil
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		return "", &core.Error{Kind: core.KindTimeout, Op: "generate", Err: res.err}
	}
	return "", core.Advisor("generate", res.err)
}

// Fingerprint identifies a request for caching.
func Fingerprint(req Request) string {
	sum := sha256.Sum256([]byte(compactJSON(req)))
	return hex.EncodeToString(sum[:])
}

const advisorSystemPrompt = `You are the SpendMind financial advisor.
Analyze the user's finances and return a prioritized action plan.

Return ONLY a JSON object with exactly this structure:
{
  "recommendations": [
    {
      "id": "string",
      "priority": "high" | "medium" | "low",
      "type": "warning" | "success" | "optimization",
      "title": "short descriptive title",
      "message": "detailed explanation of the insight",
      "action": "specific, actionable step",
      "color": "display classes"
    }
  ],
  "totalPotentialSavings": number
}

Color classes:
- high/warning: "` + ColorHigh + `"
- medium/optimization: "` + ColorMedium + `"
- low/success: "` + ColorLow + `"
- generic: "` + ColorGeneric + `"`

func advisorContext(req Request) string {
	return fmt.Sprintf(`Financial Goals: %s
Recent Expenses: %s
Categories: %s
Spending Reduction Target: %s%%

Analyze the current spending patterns against the goals and reduction target.
Identify risks, calculate potential savings, and provide specific optimization steps.
Be precise with numbers. Keep the tone professional but encouraging.`,
		compactJSON(req.Goals), compactJSON(req.Expenses), compactJSON(req.Categories), req.ReductionRatePercent)
}
