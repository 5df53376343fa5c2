package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nutrivision"
	"nutrivision/chat"
	"nutrivision/llm"
	"nutrivision/nutrients"
	"nutrivision/recipes"
	"nutrivision/recognition"
	"nutrivision/storage"
)

const imagePlaceholder = "[image]"

// ErrEmptyMessage rejects a turn with neither text nor an image.
var ErrEmptyMessage = errors.New("empty message")

// Recognizer identifies foods in an image.
type Recognizer interface {
	Recognize(ctx context.Context, img recognition.Image) ([]recognition.Item, error)
}

// Request is one inbound user turn.
type Request struct {
	UserID string
	// ChatID selects an existing session; empty starts a new one.
	ChatID   string
	ChatName string
	Message  string
	// RecognitionResult is a recognition payload the client already obtained.
	RecognitionResult string
	Image             *recognition.Image
	Profile           Profile
}

// Result is the reply plus the grounding it was built from.
type Result struct {
	ChatID           string             `json:"chatId"`
	Reply            string             `json:"response"`
	Display          string             `json:"display"`
	Intent           Intent             `json:"intent"`
	ImageSummary     string             `json:"image_summary,omitempty"`
	NutritionSummary string             `json:"nutrition_message,omitempty"`
	Unresolved       []string           `json:"unresolved,omitempty"`
	Items            []recognition.Item `json:"items,omitempty"`
	Recipes          []recipes.Record   `json:"recipes,omitempty"`
	ImageRef         string             `json:"image_ref,omitempty"`
	LLMCalls         int                `json:"-"`
	PromptBytes      int                `json:"-"`
	Resolved         []ResolvedFood     `json:"-"`
}

type Options struct {
	Model   llm.ChatModel
	Index   *nutrients.Index
	Recipes *recipes.Table
	Store   chat.Store
	// Recognizer and Images are optional.
	Recognizer      Recognizer
	Images          storage.ObjectWriter
	Logger          nutrivision.TurnLogger
	Tracer          trace.Tracer
	FuzzyThreshold  float64
	HistoryTurns    int
	IgnoredMentions []string
}

// Assistant runs the query resolution pipeline for one turn at a time.
type Assistant struct {
	model      llm.ChatModel
	store      chat.Store
	recognizer Recognizer
	images     storage.ObjectWriter
	logger     nutrivision.TurnLogger
	tracer     trace.Tracer
	router     *Router
	assembler  *Assembler

	historyTurns int
}

func NewAssistant(opts Options) (*Assistant, error) {
	if opts.Model == nil {
		return nil, errors.New("missing language model")
	}
	if opts.Index == nil {
		return nil, errors.New("missing nutrient index")
	}
	if opts.Store == nil {
		return nil, errors.New("missing chat store")
	}
	if opts.Recipes == nil {
		opts.Recipes = recipes.NewTable(nil)
	}
	if opts.Logger == nil {
		opts.Logger = nutrivision.NewNoOpTurnLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(nutrivision.TracerNamePipeline)
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = DefaultHistoryTurns
	}

	matcher := nutrients.NewMatcher(opts.Index, opts.FuzzyThreshold)
	router := NewRouter(
		NewExtractor(opts.Model),
		NewAggregator(opts.Index, matcher, opts.IgnoredMentions),
		NewRecipeResolver(opts.Model, opts.Recipes),
		matcher,
		opts.Index,
		opts.Tracer,
	)

	return &Assistant{
		model:        opts.Model,
		store:        opts.Store,
		recognizer:   opts.Recognizer,
		images:       opts.Images,
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		router:       router,
		assembler:    NewAssembler(opts.HistoryTurns),
		historyTurns: opts.HistoryTurns,
	}, nil
}

// Respond routes the turn, makes exactly one final model call and persists
// the turn. Nothing is persisted when an upstream service fails.
func (a *Assistant) Respond(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := a.tracer.Start(ctx, "Assistant.Respond", trace.WithAttributes(
		attribute.String("chat.id", req.ChatID),
		attribute.Bool("request.has_image", req.Image != nil),
		attribute.Bool("request.has_result", req.RecognitionResult != ""),
	))
	defer span.End()

	log := nutrivision.TurnLog{Timestamp: time.Now(), UserID: req.UserID, ChatID: req.ChatID}
	defer func() {
		if err != nil {
			log.Error = err.Error()
			span.SetStatus(codes.Error, "respond failed")
			span.RecordError(err)
		}
		if lerr := a.logger.LogTurn(log); lerr != nil {
			slog.Error("ASSISTANT: Failed to log turn", "error", lerr)
		}
	}()

	if strings.TrimSpace(req.UserID) == "" {
		return Result{}, ErrMissingUser
	}
	if strings.TrimSpace(req.Message) == "" && req.Image == nil && strings.TrimSpace(req.RecognitionResult) == "" {
		return Result{}, ErrEmptyMessage
	}

	var history []chat.Turn
	if req.ChatID != "" {
		history, err = a.store.LastTurns(ctx, req.UserID, req.ChatID, a.historyTurns)
		if errors.Is(err, chat.ErrSessionNotFound) {
			return Result{}, err
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: load history: %w", ErrPersistence, err)
		}
	}

	items, err := a.recognitionItems(ctx, req)
	if err != nil {
		return Result{}, err
	}

	t := &turnState{Text: req.Message, Items: items}
	intent, g, err := a.router.route(ctx, t)
	log.Intent = string(intent)
	log.Mentions = t.Mentions
	log.LLMCalls = t.LLMCalls
	if err != nil {
		return Result{}, err
	}

	messages := a.assembler.Assemble(history, req.Message, g, req.Profile)
	log.PromptBytes = llm.Size(messages)

	reply, err := a.model.Chat(ctx, messages)
	t.LLMCalls++
	log.LLMCalls = t.LLMCalls
	if err != nil {
		return Result{}, fmt.Errorf("%w: final response: %w", ErrUpstream, err)
	}

	res = Result{
		ChatID:           req.ChatID,
		Reply:            reply,
		Intent:           intent,
		ImageSummary:     g.ImageSummary,
		NutritionSummary: t.Nutrition.Text,
		Unresolved:       g.Unresolved,
		Items:            items,
		Recipes:          g.Recipes,
		LLMCalls:         t.LLMCalls,
		PromptBytes:      log.PromptBytes,
		Resolved:         t.Nutrition.Foods,
	}
	res.Display = Display(res)

	for _, f := range t.Nutrition.Foods {
		log.Resolved = append(log.Resolved, nutrivision.ResolvedLog{Mention: f.Mention, FoodID: f.Record.ID, Name: f.Record.CanonicalName, Tier: f.Tier.String()})
	}
	log.Unresolved = t.Nutrition.Unresolved
	for _, r := range g.Recipes {
		log.Recipes = append(log.Recipes, r.Name)
	}
	log.Reply = reply

	if res.ImageRef, err = a.saveImage(ctx, req); err != nil {
		return Result{}, err
	}

	if res.ChatID, err = a.persist(ctx, req, res); err != nil {
		return Result{}, err
	}
	log.ChatID = res.ChatID

	span.SetAttributes(
		attribute.String("intent", string(intent)),
		attribute.Int("llm_calls", t.LLMCalls),
		attribute.Int("prompt_size_bytes", log.PromptBytes),
	)
	slog.Info("ASSISTANT: Turn completed", "chat_id", res.ChatID, "intent", intent, "llm_calls", t.LLMCalls, "reply_len", len(reply))
	return res, nil
}

// recognitionItems prefers a client-supplied payload and only calls the
// recognizer for a bare image. A payload is taken as is: the recognizer that
// produced it already applied its confidence cut.
func (a *Assistant) recognitionItems(ctx context.Context, req Request) ([]recognition.Item, error) {
	if strings.TrimSpace(req.RecognitionResult) != "" {
		items, err := recognition.ParsePayload(req.RecognitionResult)
		if err != nil {
			slog.Warn("ASSISTANT: Ignoring malformed recognition payload", "error", err)
			return nil, nil
		}
		return items, nil
	}
	if req.Image == nil || a.recognizer == nil {
		return nil, nil
	}
	items, err := a.recognizer.Recognize(ctx, *req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: recognize image: %w", ErrUpstream, err)
	}
	return items, nil
}

func (a *Assistant) saveImage(ctx context.Context, req Request) (string, error) {
	if req.Image == nil || a.images == nil || len(req.Image.Data) == 0 {
		return "", nil
	}
	key := fmt.Sprintf("%s/%s%s", req.UserID, uuid.NewString(), imageExt(*req.Image))
	ref, err := a.images.Put(ctx, key, req.Image.Data, req.Image.ContentType)
	if err != nil {
		return "", fmt.Errorf("%w: save image: %w", ErrPersistence, err)
	}
	return ref, nil
}

func imageExt(img recognition.Image) string {
	if ext := strings.ToLower(filepath.Ext(img.Filename)); ext != "" {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(img.ContentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// persist appends the turn, creating the session first for a new chat.
func (a *Assistant) persist(ctx context.Context, req Request, res Result) (string, error) {
	chatID := req.ChatID
	if chatID == "" {
		s := chat.NewSession(req.UserID, req.ChatName, req.Message)
		if err := a.store.Create(ctx, s); err != nil {
			return "", fmt.Errorf("%w: create session: %w", ErrPersistence, err)
		}
		chatID = s.ID
	}

	turn := chat.Turn{
		UserMessage:      storedMessage(req.Message, res.Items),
		ImageRef:         res.ImageRef,
		ImageSummary:     res.ImageSummary,
		NutritionSummary: res.NutritionSummary,
		AssistantReply:   res.Reply,
		Intent:           string(res.Intent),
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.store.Append(ctx, req.UserID, chatID, turn); err != nil {
		return "", fmt.Errorf("%w: append turn: %w", ErrPersistence, err)
	}
	return chatID, nil
}

// storedMessage stands in for the text of an image-only turn so that the
// turn still reads as a user question in later history.
func storedMessage(text string, items []recognition.Item) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	if len(names) == 0 {
		return imagePlaceholder
	}
	return imagePlaceholder + " " + strings.Join(names, ", ")
}

// Display is the client-facing text: the grounding shown above the reply.
func Display(res Result) string {
	switch res.Intent {
	case IntentImage:
		return "Recognized food items from the image:\n\n" + strings.TrimSpace(res.ImageSummary) + "\n\n" + res.Reply
	case IntentNutrition:
		return strings.TrimSpace(res.NutritionSummary) + "\n\n" + res.Reply
	default:
		return res.Reply
	}
}
