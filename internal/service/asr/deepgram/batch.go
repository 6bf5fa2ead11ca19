// Package deepgram provides Deepgram transcription providers: a batch HTTP
// provider and a streaming websocket provider that surfaces interim results.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/audio"
)

const (
	defaultBatchURL   = "https://api.deepgram.com/v1/listen"
	defaultHTTPParams = "model=nova-2&language=en&punctuate=true&smart_format=true"
	sampleRate        = 16000
)

// batchResponse mirrors the relevant slice of Deepgram's prerecorded API
// response.
type batchResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// BatchProvider transcribes segments with a single HTTP request each,
// uploading the segment audio as a WAV body.
type BatchProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewBatchProvider creates a batch provider. An empty baseURL selects the
// public API endpoint.
func NewBatchProvider(apiKey, baseURL string, log zerolog.Logger) (*BatchProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	if baseURL == "" {
		baseURL = defaultBatchURL
	}
	return &BatchProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}, nil
}

// Name identifies the backend.
func (p *BatchProvider) Name() string { return "deepgram" }

// TranscribeSegment uploads the segment as WAV and normalizes the response.
// An empty alternatives list is surfaced as a failure for the segment.
func (p *BatchProvider) TranscribeSegment(ctx context.Context, seg *audio.Segment) (*asr.Result, error) {
	start := time.Now()

	wav, err := audio.EncodeWAV(seg.Samples(), sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment audio: %w", err)
	}

	url := p.baseURL + "?" + defaultHTTPParams
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram API error: %d %s", resp.StatusCode, string(body))
	}

	var parsed batchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse deepgram response: %w", err)
	}

	result, err := normalizeBatch(&parsed, seg)
	if err != nil {
		return nil, err
	}

	p.log.Debug().
		Str("segmentId", seg.ID).
		Dur("latency", time.Since(start)).
		Msg("batch transcription completed")
	return result, nil
}

func normalizeBatch(resp *batchResponse, seg *audio.Segment) (*asr.Result, error) {
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("no transcription results from deepgram")
	}
	alt := resp.Results.Channels[0].Alternatives[0]

	var words []asr.Word
	for _, w := range alt.Words {
		words = append(words, asr.Word{
			Text:       w.Word,
			Start:      seg.Start.Add(time.Duration(w.Start * float64(time.Second))),
			End:        seg.Start.Add(time.Duration(w.End * float64(time.Second))),
			Confidence: w.Confidence,
		})
	}

	return &asr.Result{
		SegmentID:  seg.ID,
		Transcript: alt.Transcript,
		Words:      words,
		Confidence: alt.Confidence,
		Language:   "en",
	}, nil
}
