package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/audio"
)

const (
	defaultStreamURL    = "wss://api.deepgram.com/v1/listen"
	defaultStreamParams = "model=nova-2&language=en&punctuate=true&smart_format=true&interim_results=true&encoding=linear16&sample_rate=16000"
)

// streamResponse mirrors the relevant slice of Deepgram's live API messages.
type streamResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
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
	} `json:"channel"`
}

// StreamingProvider transcribes each segment over a dedicated websocket
// session, surfacing interim results as partial transcripts before the final
// Result resolves.
type StreamingProvider struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer
	log     zerolog.Logger
}

// NewStreamingProvider creates a streaming provider. An empty baseURL
// selects the public endpoint.
func NewStreamingProvider(apiKey, baseURL string, log zerolog.Logger) (*StreamingProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	if baseURL == "" {
		baseURL = defaultStreamURL
	}
	return &StreamingProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		log:     log,
	}, nil
}

// Name identifies the backend.
func (p *StreamingProvider) Name() string { return "deepgram-streaming" }

// TranscribeSegment satisfies the batch contract by running the streaming
// path and discarding partials.
func (p *StreamingProvider) TranscribeSegment(ctx context.Context, seg *audio.Segment) (*asr.Result, error) {
	return p.TranscribeSegmentStreaming(ctx, seg, nil)
}

// TranscribeSegmentStreaming opens a websocket session, sends the segment's
// PCM followed by a close sentinel, and pumps interim results to onPartial
// until the session closes. Absence of any final transcript is a failure for
// the segment.
func (p *StreamingProvider) TranscribeSegmentStreaming(ctx context.Context, seg *audio.Segment, onPartial asr.PartialFunc) (*asr.Result, error) {
	start := time.Now()
	url := p.baseURL + "?" + defaultStreamParams

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := p.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to deepgram: %w", err)
	}
	defer conn.Close()

	// Ship the whole segment, then tell the backend no more audio follows.
	pcm := audio.Int16ToBytes(audio.Float32ToInt16(seg.Samples()))
	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return nil, fmt.Errorf("failed to send audio: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return nil, fmt.Errorf("failed to close stream: %w", err)
	}

	var (
		finalTranscript string
		finalConfidence float64
		words           []asr.Word
	)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			// Session ended; whatever final we collected decides the outcome.
			if finalTranscript != "" {
				break
			}
			return nil, fmt.Errorf("deepgram session error: %w", err)
		}

		var resp streamResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			p.log.Debug().Err(err).Msg("unparseable stream message")
			continue
		}
		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}

		alt := resp.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}
		isFinal := resp.IsFinal || resp.SpeechFinal

		if onPartial != nil {
			onPartial(asr.PartialTranscript{
				SegmentID:  seg.ID,
				Text:       alt.Transcript,
				IsFinal:    isFinal,
				Timestamp:  time.Now(),
				Confidence: alt.Confidence,
			})
		}

		if isFinal {
			finalTranscript = alt.Transcript
			finalConfidence = alt.Confidence
			words = words[:0]
			for _, w := range alt.Words {
				words = append(words, asr.Word{
					Text:       w.Word,
					Start:      seg.Start.Add(time.Duration(w.Start * float64(time.Second))),
					End:        seg.Start.Add(time.Duration(w.End * float64(time.Second))),
					Confidence: w.Confidence,
				})
			}
			break
		}
	}

	if finalTranscript == "" {
		return nil, fmt.Errorf("no final transcript received")
	}

	p.log.Debug().
		Str("segmentId", seg.ID).
		Dur("latency", time.Since(start)).
		Msg("streaming transcription completed")

	return &asr.Result{
		SegmentID:  seg.ID,
		Transcript: finalTranscript,
		Words:      words,
		Confidence: finalConfidence,
		Language:   "en",
	}, nil
}
