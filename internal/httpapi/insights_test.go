package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sonara-health/sonara/internal/insights"
	"github.com/sonara-health/sonara/pkg/provider/analysis"
	"github.com/sonara-health/sonara/pkg/store"
)

func TestInsightsFullExtraction(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	rr := env.do(t, http.MethodPost, "/api/insights", tok, map[string]string{
		"text": "I felt much better this week and talked about work with my therapist.",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}

	var out insights.Insights
	decodeBody(t, rr, &out)

	if out.Sentiment != "Calm and hopeful overall." {
		t.Errorf("sentiment = %q", out.Sentiment)
	}
	if out.SpeakingTime["Therapist"] != 40 || out.SpeakingTime["Patient"] != 60 {
		t.Errorf("speaking time = %v, want 40/60", out.SpeakingTime)
	}
	if len(out.WordCloud) == 0 {
		t.Error("word cloud is empty")
	}
	if len(out.Degraded) != 0 {
		t.Errorf("degraded = %v, want none", out.Degraded)
	}
}

func TestInsightsDegradesOnProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.analysis.Responses = nil
	env.analysis.Err = errors.New("upstream down")
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	rr := env.do(t, http.MethodPost, "/api/insights", tok, map[string]string{
		"text": "talked about sleep and anxiety today",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when degraded (%s)", rr.Code, rr.Body.String())
	}

	var out insights.Insights
	decodeBody(t, rr, &out)

	if out.Sentiment != insights.FallbackSentiment {
		t.Errorf("sentiment = %q, want fallback", out.Sentiment)
	}
	if out.SpeakingTime["Therapist"] != 50 || out.SpeakingTime["Patient"] != 50 {
		t.Errorf("speaking time = %v, want 50/50 fallback", out.SpeakingTime)
	}
	if len(out.Degraded) != 2 {
		t.Errorf("degraded = %v, want sentiment and speakingTime", out.Degraded)
	}
	if len(out.WordCloud) == 0 {
		t.Error("word cloud should not degrade with the provider")
	}
}

func TestInsightsRejectsEmptyText(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	for _, target := range []string{"/api/insights", "/api/summarize", "/api/translate"} {
		rr := env.do(t, http.MethodPost, target, tok, map[string]string{"text": ""})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("POST %s with empty text = %d, want 400", target, rr.Code)
		}
	}
}

func TestSummarize(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	rr := env.do(t, http.MethodPost, "/api/summarize", tok, map[string]string{
		"text": "Therapist: how was your week? Patient: better than the last.",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}

	var out struct {
		Summary string `json:"summary"`
	}
	decodeBody(t, rr, &out)
	if out.Summary != "The client discussed progress at work." {
		t.Errorf("summary = %q", out.Summary)
	}
}

func TestSummarizeFailsHard(t *testing.T) {
	env := newTestEnv(t)
	env.analysis.Responses = nil
	env.analysis.Err = errors.New("upstream down")
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	rr := env.do(t, http.MethodPost, "/api/summarize", tok, map[string]string{"text": "hello"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestSummarizePropagatesUpstreamAuthFailure(t *testing.T) {
	env := newTestEnv(t)
	env.analysis.Responses = nil
	env.analysis.CompleteFunc = func(context.Context, analysis.Request) (string, error) {
		return "", fmt.Errorf("%w: bad api key", analysis.ErrUnauthorized)
	}
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	rr := env.do(t, http.MethodPost, "/api/summarize", tok, map[string]string{"text": "hello"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for upstream credential rejection", rr.Code)
	}
}

func TestTranslate(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	rr := env.do(t, http.MethodPost, "/api/translate", tok, map[string]string{"text": "Hallo Welt"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}

	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	decodeBody(t, rr, &out)
	if out.TranslatedText != "Already English." {
		t.Errorf("translated text = %q", out.TranslatedText)
	}
}
