// Package insights derives analyses from a finished session transcript:
// sentiment, word frequencies, a speaking-time split, a session summary, and
// translation.
//
// Sentiment and speaking time are single-shot calls to the text-analysis
// provider; word frequency is a local deterministic computation. The three
// run concurrently and are joined before the result is returned. Provider
// failures on sentiment and speaking time degrade to fixed fallback values
// rather than failing the session — the degradation is recorded on the result
// so callers can surface it instead of silently masking an outage.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sonara-health/sonara/pkg/provider/analysis"
)

// Participant roles in the speaking-time split.
const (
	RoleTherapist = "Therapist"
	RolePatient   = "Patient"
)

// FallbackSentiment is returned when the sentiment call fails or comes back empty.
const FallbackSentiment = "Sentiment unavailable"

// fallbackSpeakingShare is the per-participant percentage used when the
// speaking-time response cannot be parsed.
const fallbackSpeakingShare = 50

// ErrDegraded marks a result in which one or more extractors fell back to
// default values. It is informational — callers still receive usable insights.
var ErrDegraded = errors.New("insights: degraded")

// ErrSummaryFailed is returned when the summary call fails or produces no
// text. Unlike the other extractors, the summary has no usable fallback.
var ErrSummaryFailed = errors.New("insights: summary failed")

const sentimentPrompt = "Analyze the overall sentiment of the following therapy session transcript. " +
	"Respond with a short sentiment description in plain text, no more than one sentence."

const speakingTimePrompt = "Estimate how speaking time in the following therapy session transcript is split " +
	"between the therapist and the patient. Respond with only a JSON object of the form " +
	`{"Therapist": <number>, "Patient": <number>} where the numbers are percentages summing to 100.`

const summaryPrompt = "You are a doctor summarizing a therapy session such that when you or the client " +
	"can read it anytime and understood what happened and further steps. Here is the dialogue:"

const translatePrompt = "You are a translator. Translate the following text to English. " +
	"Maintain the original meaning and tone. If the text is already in English, simply return it unchanged."

// Insights is the derived-analysis part of a session record.
type Insights struct {
	// Sentiment is a short free-text sentiment label.
	Sentiment string `json:"sentiment"`

	// WordCloud is the top-N term list, most frequent first.
	WordCloud []string `json:"wordCloudData"`

	// SpeakingTime maps participant role to a whole percentage. The two
	// values sum to approximately 100.
	SpeakingTime map[string]int `json:"speakingTime"`

	// Degraded lists the extractors that fell back to default values
	// ("sentiment", "speakingTime"). Empty on a fully successful run.
	Degraded []string `json:"degraded,omitempty"`
}

// Extractor runs insight extraction against a text-analysis provider.
type Extractor struct {
	provider analysis.Provider
}

// NewExtractor creates an Extractor backed by the given provider.
func NewExtractor(provider analysis.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract computes all insights for a transcript. The two provider-backed
// extractors run concurrently with the local word-frequency computation and
// are joined before returning; each writes a disjoint field so no
// synchronisation beyond the join is needed.
//
// Extract never fails: provider errors degrade the affected field to its
// fallback value and the field name is appended to Insights.Degraded.
func (e *Extractor) Extract(ctx context.Context, transcript string) Insights {
	result := Insights{
		SpeakingTime: map[string]int{RoleTherapist: fallbackSpeakingShare, RolePatient: fallbackSpeakingShare},
	}

	var sentimentDegraded, speakingDegraded bool

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sentiment, ok := e.sentiment(gctx, transcript)
		result.Sentiment = sentiment
		sentimentDegraded = !ok
		return nil
	})

	g.Go(func() error {
		split, ok := e.speakingTime(gctx, transcript)
		if ok {
			result.SpeakingTime = split
		}
		speakingDegraded = !ok
		return nil
	})

	g.Go(func() error {
		result.WordCloud = WordFrequencies(transcript)
		return nil
	})

	// The goroutines only report degradation, never errors.
	_ = g.Wait()

	if sentimentDegraded {
		result.Degraded = append(result.Degraded, "sentiment")
	}
	if speakingDegraded {
		result.Degraded = append(result.Degraded, "speakingTime")
	}
	return result
}

// sentiment runs the sentiment call. ok is false when the fallback was used.
func (e *Extractor) sentiment(ctx context.Context, transcript string) (string, bool) {
	text, err := e.provider.Complete(ctx, analysis.Request{
		SystemPrompt: sentimentPrompt,
		UserText:     transcript,
		MaxTokens:    120,
	})
	if err != nil {
		slog.Warn("sentiment extraction degraded to fallback", "err", err)
		return FallbackSentiment, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Warn("sentiment extraction returned empty text, using fallback")
		return FallbackSentiment, false
	}
	return text, true
}

// speakingTime runs the speaking-time call and parses the JSON split.
// ok is false when the 50/50 fallback applies.
func (e *Extractor) speakingTime(ctx context.Context, transcript string) (map[string]int, bool) {
	text, err := e.provider.Complete(ctx, analysis.Request{
		SystemPrompt: speakingTimePrompt,
		UserText:     transcript,
		MaxTokens:    60,
	})
	if err != nil {
		slog.Warn("speaking-time extraction degraded to fallback", "err", err)
		return nil, false
	}

	split, err := parseSpeakingTime(text)
	if err != nil {
		slog.Warn("speaking-time response unparseable, using fallback",
			"err", err,
			"response", text,
		)
		return nil, false
	}
	return split, true
}

// parseSpeakingTime extracts the {"Therapist": n, "Patient": n} object from a
// model response. Models occasionally wrap JSON in prose or code fences, so
// parsing starts at the first '{' and ends at the last '}'.
func parseSpeakingTime(text string) (map[string]int, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse speaking time: %w", err)
	}

	therapist, tok := raw[RoleTherapist]
	patient, pok := raw[RolePatient]
	if !tok || !pok {
		return nil, fmt.Errorf("response missing Therapist/Patient keys")
	}

	sum := therapist + patient
	if math.Abs(sum-100) > 5 || therapist < 0 || patient < 0 {
		return nil, fmt.Errorf("percentages %v + %v do not sum to ~100", therapist, patient)
	}

	t := int(math.Round(therapist))
	return map[string]int{RoleTherapist: t, RolePatient: 100 - t}, nil
}

// Summarize produces the session summary. Unlike the extractors it fails
// hard: a session record without a summary is not worth persisting.
func (e *Extractor) Summarize(ctx context.Context, transcript string) (string, error) {
	text, err := e.provider.Complete(ctx, analysis.Request{
		SystemPrompt: summaryPrompt,
		UserText:     transcript,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummaryFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty summary", ErrSummaryFailed)
	}
	return text, nil
}

// Translate renders text into English, returning it unchanged when it is
// already English. Low temperature keeps translations consistent.
func (e *Extractor) Translate(ctx context.Context, text string) (string, error) {
	out, err := e.provider.Complete(ctx, analysis.Request{
		SystemPrompt: translatePrompt,
		UserText:     text,
		Temperature:  0.3,
	})
	if err != nil {
		return "", fmt.Errorf("insights: translate: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("insights: translate: empty result")
	}
	return out, nil
}
