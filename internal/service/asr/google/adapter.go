// Package google provides Google Cloud Speech-to-Text providers.
package google

import (
	"context"
	"fmt"
	"io"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/audio"
)

const sampleRateHertz = 16000

// Provider implements asr.StreamingProvider on Google Cloud Speech-to-Text.
// Each segment gets its own recognize call (batch) or streaming session.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Provider struct {
	client   *speech.Client
	language string
	log      zerolog.Logger
}

// New creates a Google provider. An empty language defaults to en-US.
func New(ctx context.Context, language string, log zerolog.Logger) (*Provider, error) {
	if language == "" {
		language = "en-US"
	}
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &Provider{client: c, language: language, log: log}, nil
}

// Name identifies the backend.
func (p *Provider) Name() string { return "google" }

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error { return p.client.Close() }

func (p *Provider) recognitionConfig() *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:              speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:       sampleRateHertz,
		LanguageCode:          p.language,
		EnableWordTimeOffsets: true,
	}
}

// TranscribeSegment performs a single synchronous recognize call.
func (p *Provider) TranscribeSegment(ctx context.Context, seg *audio.Segment) (*asr.Result, error) {
	pcm := audio.Int16ToBytes(audio.Float32ToInt16(seg.Samples()))

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: p.recognitionConfig(),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		p.log.Warn().Err(err).
			Str("segmentId", seg.ID).
			Bool("transient", IsTransient(err)).
			Msg("recognize failed")
		return nil, fmt.Errorf("recognize failed: %w", err)
	}
	if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
		return nil, fmt.Errorf("no transcription results from google")
	}

	alt := resp.Results[0].Alternatives[0]
	return &asr.Result{
		SegmentID:  seg.ID,
		Transcript: alt.Transcript,
		Words:      mapWords(alt.Words, seg.Start),
		Confidence: float64(alt.Confidence),
		Language:   p.language,
	}, nil
}

// TranscribeSegmentStreaming runs one streaming session for the segment:
// config, audio, half-close, then a receive loop that fans out interim
// results until the final one arrives.
func (p *Provider) TranscribeSegmentStreaming(ctx context.Context, seg *audio.Segment, onPartial asr.PartialFunc) (*asr.Result, error) {
	stream, err := p.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open streaming session: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         p.recognitionConfig(),
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	pcm := audio.Int16ToBytes(audio.Float32ToInt16(seg.Samples()))
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: pcm,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send audio: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send side: %w", err)
	}

	var final *asr.Result
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.log.Warn().Err(err).
				Str("segmentId", seg.ID).
				Bool("transient", IsTransient(err)).
				Msg("streaming recv failed")
			return nil, fmt.Errorf("streaming recv failed: %w", err)
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}

			if onPartial != nil {
				onPartial(asr.PartialTranscript{
					SegmentID:  seg.ID,
					Text:       alt.Transcript,
					IsFinal:    r.IsFinal,
					Timestamp:  time.Now(),
					Confidence: float64(alt.Confidence),
				})
			}

			if r.IsFinal {
				final = &asr.Result{
					SegmentID:  seg.ID,
					Transcript: alt.Transcript,
					Words:      mapWords(alt.Words, seg.Start),
					Confidence: float64(alt.Confidence),
					Language:   p.language,
				}
			}
		}
	}

	if final == nil {
		return nil, fmt.Errorf("no final transcript received")
	}
	return final, nil
}

func mapWords(words []*speechpb.WordInfo, segStart time.Time) []asr.Word {
	var out []asr.Word
	for _, w := range words {
		out = append(out, asr.Word{
			Text:  w.Word,
			Start: segStart.Add(w.StartTime.AsDuration()),
			End:   segStart.Add(w.EndTime.AsDuration()),
		})
	}
	return out
}

// IsTransient reports whether a provider error looks like a transient
// network/service condition rather than a permanent request problem. It
// informs failure log context only; the dispatcher never retries either way.
func IsTransient(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
