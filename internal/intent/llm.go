package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/rainseason/internal/metrics"
	"github.com/lox/rainseason/internal/models"
)

const (
	DefaultLLMBaseURL = "https://api.groq.com/openai/v1"
	DefaultLLMModel   = "llama-3.1-8b-instant"
	DefaultLLMTimeout = 10 * time.Second
	defaultLLMConf    = 0.8
)

const systemPrompt = `You extract structured intent as JSON from messages sent by farmers in Ghana to a weather assistant.
Output ONLY a JSON object, no markdown and no explanation:
{"city": string or null, "query_type": string, "crop": string or null, "confidence": number between 0 and 1}

query_type, checked in this order:
- "greeting": hi, hello, good morning
- "help": help, how do I use this, what can you do, anything unrelated to weather or farming
- "seasonal_onset": onset, start of the rains, when does the rainy season begin
- "seasonal_cessation": cessation, end of the rains, when do the rains stop
- "dry_spell": dry spell, drought risk, dry period
- "season_length": season length, how long is the season, duration
- "seasonal": seasonal outlook, 3-month or 6-month outlook, "season" without specifics
- "gdd", "soil", "eto", "dekadal": growing degree days, soil moisture, evapotranspiration, 10-day bulletin
- "crop_advice": when to plant, planting advice
- "forecast": tomorrow, next week, will it rain
- "weather": current conditions (default)

city: the Ghanaian town or village named in the message, spelled as written in title case, else null. Never guess a city.
Known cities: %s.
crop: one of %s, else null. Report corn as maize.
Lower the confidence when the message is ambiguous.`

// LLMConfig configures an OpenAI-compatible chat endpoint, Groq by default.
type LLMConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// LLMExtractor asks a chat model for the intent and falls back to keyword
// routing on any error or unusable answer.
type LLMExtractor struct {
	client   openai.Client
	model    string
	timeout  time.Duration
	prompt   string
	fallback *KeywordRouter
}

func NewLLMExtractor(cfg LLMConfig, fallback *KeywordRouter) *LLMExtractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	if fallback == nil {
		fallback = NewKeywordRouter()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(1),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &LLMExtractor{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		prompt:   fmt.Sprintf(systemPrompt, strings.Join(GhanaCities, ", "), strings.Join(Crops, ", ")),
		fallback: fallback,
	}
}

func (e *LLMExtractor) Extract(ctx context.Context, message string, uc *models.UserContext) Intent {
	in, err := e.extract(ctx, message, uc)
	if err != nil {
		log.Printf("intent: llm extraction failed, using keywords: %v", err)
		in = e.fallback.route(message, uc)
		metrics.IntentsRouted.WithLabelValues(string(in.QueryType), "llm_fallback").Inc()
		return in
	}
	metrics.IntentsRouted.WithLabelValues(string(in.QueryType), "llm").Inc()
	return in
}

func (e *LLMExtractor) extract(ctx context.Context, message string, uc *models.UserContext) (Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	user := fmt.Sprintf("Message: %q", message)
	if uc != nil && uc.LastCity.Valid {
		user += fmt.Sprintf("\nUser's last location: %s", uc.LastCity.String)
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(e.prompt),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(0.1),
		MaxCompletionTokens: openai.Int(200),
	})
	if err != nil {
		return Intent{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Intent{}, errors.New("no choices returned")
	}

	in, err := parseLLMIntent(resp.Choices[0].Message.Content)
	if err != nil {
		return Intent{}, err
	}
	in.Message = message
	return applyMemory(in, uc), nil
}

type llmIntent struct {
	City       *string  `json:"city"`
	QueryType  string   `json:"query_type"`
	Crop       *string  `json:"crop"`
	Confidence *float64 `json:"confidence"`
}

// parseLLMIntent reads the model's JSON answer, tolerating code fences and
// surrounding prose.
func parseLLMIntent(content string) (Intent, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return Intent{}, fmt.Errorf("no JSON object in %q", content)
	}

	var raw llmIntent
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Intent{}, fmt.Errorf("unmarshal intent: %w", err)
	}
	qt, ok := ParseQueryType(raw.QueryType)
	if !ok {
		return Intent{}, fmt.Errorf("unknown query_type %q", raw.QueryType)
	}

	in := Intent{QueryType: qt, Confidence: defaultLLMConf}
	if raw.Confidence != nil && *raw.Confidence >= 0 && *raw.Confidence <= 1 {
		in.Confidence = *raw.Confidence
	}
	if raw.City != nil {
		in.City = strings.TrimSpace(*raw.City)
	}
	if raw.Crop != nil {
		c := strings.ToLower(strings.TrimSpace(*raw.Crop))
		if c == "corn" {
			c = "maize"
		}
		if isCrop(c) {
			in.Crop = c
		}
	}
	return in, nil
}
