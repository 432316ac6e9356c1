// Package handlers implements the /api/ai endpoints. Each handler builds a
// prompt, sends it through the processor and writes either the raw reply
// or its structured form.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/teilomillet/parley/converter"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/prompt"
	"github.com/teilomillet/parley/server/middleware"
	"github.com/teilomillet/parley/server/processing"
	"github.com/teilomillet/parley/server/provider"
	"github.com/teilomillet/parley/server/validation"
	"go.uber.org/zap"
)

// EchoPrompt is sent by the echo endpoint.
const EchoPrompt = "Hi, how are you?"

var (
	titleTemplate = prompt.NewTemplate("I would like to give presentation on the following topic: {topic}. " +
		"Can you give me {count} title that would be relevant.")

	structuredTitleTemplate = prompt.NewTemplate(`I would like to give presentation on the following topic: {topic}.

Can you give me {count} title that would be relevant.

{format}
`)

	langsTemplate = prompt.NewTemplate(`Return all popular programming languages and their inception year.

{format}
`)

	tweetTemplate = prompt.NewTemplate(`Generate a tweet for the following topic: {topic}.


{format}

`)
)

// Tweet is the record returned by the tweet endpoint.
type Tweet struct {
	Content  string   `json:"content"`
	Hashtags []string `json:"hashtags"`
}

// TweetSchema declares the fields the model must return for a Tweet.
var TweetSchema = converter.Schema{
	Name: "Tweet",
	Fields: []converter.Field{
		{Name: "content", Type: converter.String, Description: "Text of the tweet"},
		{Name: "hashtags", Type: converter.StringList, Description: "Hashtags used in the tweet"},
	},
}

// TitleSuggestionResponse is the body of the structured title endpoint.
type TitleSuggestionResponse struct {
	Titles []string `json:"titles"`
}

// ChatHandler serves the chat endpoints. It holds no per-request state.
type ChatHandler struct {
	processor   *processing.Processor
	validator   *validation.Validator
	tweetSystem string
	logger      *zap.Logger

	titles converter.ListConverter
	langs  converter.MapConverter
	tweets *converter.RecordConverter[Tweet]
}

// NewChatHandler creates the handler. tweetSystem is the system message
// used by both tweet endpoints, loaded once at startup.
func NewChatHandler(processor *processing.Processor, v *validation.Validator, tweetSystem string, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		processor:   processor,
		validator:   v,
		tweetSystem: tweetSystem,
		logger:      logger,
		titles:      converter.NewListConverter(),
		langs:       converter.NewMapConverter(),
		tweets:      converter.NewRecordConverter[Tweet](TweetSchema),
	}
}

// Handlers returns the endpoints keyed by the names used in route config.
func (h *ChatHandler) Handlers() map[string]http.Handler {
	return map[string]http.Handler{
		"echo":                     http.HandlerFunc(h.Echo),
		"generate_tweet":           http.HandlerFunc(h.GenerateTweet),
		"suggest_title":            http.HandlerFunc(h.SuggestTitle),
		"suggest_title_structured": http.HandlerFunc(h.SuggestTitleStructured),
		"langs":                    http.HandlerFunc(h.Langs),
		"tweet":                    http.HandlerFunc(h.Tweet),
	}
}

// Echo sends a fixed greeting and returns the reply as text.
func (h *ChatHandler) Echo(w http.ResponseWriter, r *http.Request) {
	h.text(w, r, provider.NewPrompt(EchoPrompt))
}

// GenerateTweet sends the tweet system message followed by the request
// body as the user message.
func (h *ChatHandler) GenerateTweet(w http.ResponseWriter, r *http.Request) {
	input, err := h.validator.ReadText(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.text(w, r, provider.NewChat(provider.System(h.tweetSystem), provider.User(input)))
}

// SuggestTitle fills the title template and returns the reply as text.
func (h *ChatHandler) SuggestTitle(w http.ResponseWriter, r *http.Request) {
	var req validation.TitleRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	text, err := titleTemplate.Fill(titleVars(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.text(w, r, provider.NewPrompt(text))
}

// SuggestTitleStructured asks for a comma-separated list of titles.
func (h *ChatHandler) SuggestTitleStructured(w http.ResponseWriter, r *http.Request) {
	var req validation.TitleRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	text, err := structuredTitleTemplate.Fill(converter.Negotiate[[]string](h.titles, titleVars(req)))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := provider.NewPrompt(text)
	if err := h.validator.CheckPrompt(p); err != nil {
		h.fail(w, r, err)
		return
	}

	titles, err := processing.Structured[[]string](r.Context(), h.processor, p, h.titles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, TitleSuggestionResponse{Titles: titles})
}

// Langs asks for popular languages keyed to their inception year.
func (h *ChatHandler) Langs(w http.ResponseWriter, r *http.Request) {
	text, err := langsTemplate.Fill(converter.Negotiate[map[string]any](h.langs, nil))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := provider.NewPrompt(text)
	if err := h.validator.CheckPrompt(p); err != nil {
		h.fail(w, r, err)
		return
	}

	langs, err := processing.Structured[map[string]any](r.Context(), h.processor, p, h.langs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, langs)
}

// Tweet asks for a Tweet record about the topic in the body. The user
// message comes before the system message.
func (h *ChatHandler) Tweet(w http.ResponseWriter, r *http.Request) {
	topic, err := h.validator.ReadText(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	text, err := tweetTemplate.Fill(converter.Negotiate[Tweet](h.tweets, map[string]any{"topic": topic}))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := provider.NewChat(provider.User(text), provider.System(h.tweetSystem))
	if err := h.validator.CheckPrompt(p); err != nil {
		h.fail(w, r, err)
		return
	}

	tweet, err := processing.Structured[Tweet](r.Context(), h.processor, p, h.tweets)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, tweet)
}

func titleVars(req validation.TitleRequest) map[string]any {
	return map[string]any{"topic": req.Topic, "count": req.Count}
}

// text runs p and writes the formatted reply as plain text.
func (h *ChatHandler) text(w http.ResponseWriter, r *http.Request, p *provider.Prompt) {
	if err := h.validator.CheckPrompt(p); err != nil {
		h.fail(w, r, err)
		return
	}

	resp, err := h.processor.Text(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if resp.Truncated {
		w.Header().Set("X-Parley-Truncated", "true")
	}
	_, _ = w.Write([]byte(resp.Content))
}

func (h *ChatHandler) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (h *ChatHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	apiErr := classify(requestID, err)
	if apiErr == nil {
		h.logger.Debug("Client went away",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
		)
		return
	}

	errors.LogError(h.logger, apiErr, requestID)
	errors.WriteError(w, apiErr)
}
