package remote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chatbot/internal/config"
	"chatbot/internal/format"
)

// ThinkingSteps is the step budget for chat-initiated reasoning.
const ThinkingSteps = 3

// Facade groups every service client and renders their results for chat.
type Facade struct {
	Time             TimeClient
	Browser          BrowserClient
	BrowserSecondary BrowserClient
	Thinking         ThinkingClient
	Search           SearchClient
	Memory           MemoryClient
	DesktopCommander DesktopCommanderClient

	log zerolog.Logger
}

func New(cfg config.Services, log zerolog.Logger) *Facade {
	byName := map[string]*Client{}
	for _, svc := range cfg.All() {
		byName[svc.Name] = NewClient(svc.Name, svc.Service)
	}
	return &Facade{
		Time:             TimeClient{byName["time"]},
		Browser:          BrowserClient{byName["playwright"]},
		BrowserSecondary: BrowserClient{byName["puppeteer"]},
		Thinking:         ThinkingClient{byName["sequentialthinking"]},
		Search:           SearchClient{byName["duckduckgo"]},
		Memory:           MemoryClient{byName["memory"]},
		DesktopCommander: DesktopCommanderClient{byName["desktop-commander"]},
		log:              log,
	}
}

// Clients lists the underlying clients in configuration order.
func (f *Facade) Clients() []*Client {
	return []*Client{
		f.Time.Client,
		f.Browser.Client,
		f.Thinking.Client,
		f.Search.Client,
		f.BrowserSecondary.Client,
		f.Memory.Client,
		f.DesktopCommander.Client,
	}
}

func (f *Facade) failed(op string, err error) {
	f.log.Warn().Err(err).Str("op", op).Msg("remote call failed")
}

func (f *Facade) CurrentTime(ctx context.Context, timezone string) string {
	p, err := f.Time.CurrentTime(ctx, timezone, "iso")
	if err != nil {
		f.failed("time", err)
		return format.ServiceError("Time", err)
	}
	tz := p.str("timezone")
	if tz == "" {
		tz = timezone
	}
	return format.CurrentTime(p.str("current_time"), tz)
}

func (f *Facade) ThinkAbout(ctx context.Context, problem string) string {
	p, err := f.Thinking.Think(ctx, problem, ThinkingSteps, "")
	if err != nil {
		f.failed("think", err)
		return format.ServiceError("Thinking", err)
	}
	var steps []string
	for _, s := range p.list("steps") {
		steps = append(steps, stepText(s))
	}
	return format.Thinking(problem, steps, p.str("conclusion"))
}

func (f *Facade) SearchWeb(ctx context.Context, query string) string {
	p, err := f.Search.Search(ctx, query, 10, true)
	if err != nil {
		f.failed("search", err)
		return format.ServiceError("Search", err)
	}
	return format.SearchResults(query, searchHits(p))
}

func (f *Facade) InstantAnswer(ctx context.Context, query string) string {
	p, err := f.Search.InstantAnswer(ctx, query)
	if err != nil {
		f.failed("instant", err)
		return format.ServiceError("Search", err)
	}
	return format.InstantAnswer(query, p.str("answer"))
}

func (f *Facade) WebScreenshot(ctx context.Context, target string) string {
	p, err := f.Browser.Screenshot(ctx, target, "")
	if err != nil {
		f.failed("screenshot", err)
		return format.ServiceError("Screenshot", err)
	}
	return format.WebScreenshot(p.str("screenshot_path"))
}

// SearchHits runs a search and returns the raw hits, for callers that
// render results themselves.
func (f *Facade) SearchHits(ctx context.Context, query string, max int) ([]format.SearchHit, error) {
	p, err := f.Search.Search(ctx, query, max, true)
	if err != nil {
		return nil, err
	}
	return searchHits(p), nil
}

func searchHits(p Payload) []format.SearchHit {
	var hits []format.SearchHit
	for _, item := range p.list("results") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		hit := Payload(m)
		hits = append(hits, format.SearchHit{Title: hit.str("title"), URL: hit.str("url"), Snippet: hit.str("snippet")})
	}
	return hits
}

// stepText accepts plain strings or objects carrying a thought/content field.
func stepText(v any) string {
	if m, ok := v.(map[string]any); ok {
		for _, k := range []string{"thought", "content", "text", "step"} {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprint(v)
}
