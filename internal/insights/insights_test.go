package insights

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sonara-health/sonara/pkg/provider/analysis"
	analysismock "github.com/sonara-health/sonara/pkg/provider/analysis/mock"
)

func TestWordFrequencies_Deterministic(t *testing.T) {
	text := "Anxiety anxiety sleep sleep sleep work family family anxiety work stress"
	first := WordFrequencies(text)
	for i := 0; i < 10; i++ {
		if got := WordFrequencies(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d = %v, want %v (must be deterministic)", i, got, first)
		}
	}
}

func TestWordFrequencies_OrderAndTieBreak(t *testing.T) {
	// sleep×3, anxiety×2, then work/family/stress tied at 1 in first-seen order.
	text := "sleep anxiety work sleep family anxiety stress sleep"
	got := WordFrequencies(text)
	want := []string{"sleep", "anxiety", "work", "family", "stress"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WordFrequencies = %v, want %v", got, want)
	}
}

func TestWordFrequencies_FiltersStopAndShortWords(t *testing.T) {
	got := WordFrequencies("the and I a to is of in on at sleeping")
	if !reflect.DeepEqual(got, []string{"sleeping"}) {
		t.Errorf("WordFrequencies = %v, want [sleeping]", got)
	}
}

func TestWordFrequencies_StripsPunctuationAndCase(t *testing.T) {
	got := WordFrequencies("Sleep! sleep? SLEEP. (sleep)")
	if !reflect.DeepEqual(got, []string{"sleep"}) {
		t.Errorf("WordFrequencies = %v, want [sleep]", got)
	}
}

func TestWordFrequencies_TopTwenty(t *testing.T) {
	var parts []string
	for r := 'a'; r <= 'z'; r++ {
		parts = append(parts, strings.Repeat(string(r), 4))
	}
	got := WordFrequencies(strings.Join(parts, " "))
	if len(got) != TopWords {
		t.Errorf("len = %d, want %d", len(got), TopWords)
	}
}

func TestExtract_AllExtractorsSucceed(t *testing.T) {
	provider := &analysismock.Provider{Responses: map[string]string{
		"sentiment":     "Calm and reflective overall.",
		"speaking time": `{"Therapist": 60, "Patient": 40}`,
	}}
	e := NewExtractor(provider)

	got := e.Extract(context.Background(), "sleep sleep anxiety")
	if got.Sentiment != "Calm and reflective overall." {
		t.Errorf("Sentiment = %q", got.Sentiment)
	}
	if got.SpeakingTime[RoleTherapist] != 60 || got.SpeakingTime[RolePatient] != 40 {
		t.Errorf("SpeakingTime = %v, want 60/40", got.SpeakingTime)
	}
	if !reflect.DeepEqual(got.WordCloud, []string{"sleep", "anxiety"}) {
		t.Errorf("WordCloud = %v", got.WordCloud)
	}
	if len(got.Degraded) != 0 {
		t.Errorf("Degraded = %v, want empty", got.Degraded)
	}
}

func TestExtract_ProviderDownDegradesBothRemoteExtractors(t *testing.T) {
	provider := &analysismock.Provider{Err: errors.New("connection refused")}
	e := NewExtractor(provider)

	got := e.Extract(context.Background(), "sleep sleep anxiety")
	if got.Sentiment != FallbackSentiment {
		t.Errorf("Sentiment = %q, want fallback", got.Sentiment)
	}
	if got.SpeakingTime[RoleTherapist] != 50 || got.SpeakingTime[RolePatient] != 50 {
		t.Errorf("SpeakingTime = %v, want exactly 50/50", got.SpeakingTime)
	}
	// Word frequency is local and cannot fail.
	if !reflect.DeepEqual(got.WordCloud, []string{"sleep", "anxiety"}) {
		t.Errorf("WordCloud = %v", got.WordCloud)
	}
	if !reflect.DeepEqual(got.Degraded, []string{"sentiment", "speakingTime"}) {
		t.Errorf("Degraded = %v, want [sentiment speakingTime]", got.Degraded)
	}
}

func TestExtract_SpeakingTimeFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "roughly even I would say"},
		{"missing keys", `{"Speaker1": 50, "Speaker2": 50}`},
		{"bad sum", `{"Therapist": 90, "Patient": 30}`},
		{"negative", `{"Therapist": 130, "Patient": -30}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &analysismock.Provider{Responses: map[string]string{
				"speaking time": tt.response,
				"sentiment":     "Fine.",
			}}
			got := NewExtractor(provider).Extract(context.Background(), "hello there friend")
			if got.SpeakingTime[RoleTherapist] != 50 || got.SpeakingTime[RolePatient] != 50 {
				t.Errorf("SpeakingTime = %v, want exactly 50/50", got.SpeakingTime)
			}
		})
	}
}

func TestExtract_SpeakingTimeToleratesProseWrappedJSON(t *testing.T) {
	provider := &analysismock.Provider{Responses: map[string]string{
		"speaking time": "Here is the split:\n```json\n{\"Therapist\": 70, \"Patient\": 30}\n```",
		"sentiment":     "Fine.",
	}}
	got := NewExtractor(provider).Extract(context.Background(), "hello there friend")
	if got.SpeakingTime[RoleTherapist] != 70 || got.SpeakingTime[RolePatient] != 30 {
		t.Errorf("SpeakingTime = %v, want 70/30", got.SpeakingTime)
	}
}

func TestExtract_EmptySentimentDegrades(t *testing.T) {
	provider := &analysismock.Provider{Responses: map[string]string{
		"sentiment":     "   ",
		"speaking time": `{"Therapist": 50, "Patient": 50}`,
	}}
	got := NewExtractor(provider).Extract(context.Background(), "hello there friend")
	if got.Sentiment != FallbackSentiment {
		t.Errorf("Sentiment = %q, want fallback", got.Sentiment)
	}
	if !reflect.DeepEqual(got.Degraded, []string{"sentiment"}) {
		t.Errorf("Degraded = %v, want [sentiment]", got.Degraded)
	}
}

func TestSummarize_Success(t *testing.T) {
	provider := &analysismock.Provider{Responses: map[string]string{
		"summarizing a therapy session": "Patient discussed sleep issues; next session in two weeks.",
	}}
	got, err := NewExtractor(provider).Summarize(context.Background(), "transcript text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(got, "sleep issues") {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarize_FailureIsFatal(t *testing.T) {
	provider := &analysismock.Provider{Err: errors.New("rate limited")}
	_, err := NewExtractor(provider).Summarize(context.Background(), "transcript text")
	if !errors.Is(err, ErrSummaryFailed) {
		t.Fatalf("err = %v, want ErrSummaryFailed", err)
	}
}

func TestSummarize_EmptyIsFatal(t *testing.T) {
	provider := &analysismock.Provider{}
	_, err := NewExtractor(provider).Summarize(context.Background(), "transcript text")
	if !errors.Is(err, ErrSummaryFailed) {
		t.Fatalf("err = %v, want ErrSummaryFailed", err)
	}
}

func TestTranslate_ForwardsLowTemperature(t *testing.T) {
	provider := &analysismock.Provider{Responses: map[string]string{
		"translator": "Good morning.",
	}}
	e := NewExtractor(provider)
	got, err := e.Translate(context.Background(), "Guten Morgen.")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Good morning." {
		t.Errorf("translated = %q", got)
	}
	calls := provider.Calls()
	if len(calls) != 1 || calls[0].Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", calls[0].Temperature)
	}
}

// Sanity-check the prompts stay single-shot requests (system + user text).
func TestExtract_RequestShape(t *testing.T) {
	provider := &analysismock.Provider{Responses: map[string]string{
		"sentiment":     "Fine.",
		"speaking time": `{"Therapist": 50, "Patient": 50}`,
	}}
	NewExtractor(provider).Extract(context.Background(), "the transcript")

	for _, call := range provider.Calls() {
		if call.SystemPrompt == "" {
			t.Error("call missing system prompt")
		}
		if call.UserText != "the transcript" {
			t.Errorf("UserText = %q, want the raw transcript", call.UserText)
		}
	}
}

var _ analysis.Provider = (*analysismock.Provider)(nil)
