package audio

import "time"

const (
	DefaultSampleRate = 16000
	ContentTypeWAV    = "audio/wav"
)

// Blob is one finalized recording, ready for upload.
type Blob struct {
	Data        []byte
	ContentType string
	Samples     int
	SampleRate  int
}

func (b Blob) Empty() bool {
	return b.Samples == 0
}

func (b Blob) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Samples) * time.Second / time.Duration(b.SampleRate)
}

// NewWAVBlob wraps mono PCM16LE audio as a WAV blob.
func NewWAVBlob(pcm []byte, sampleRate int) (Blob, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	data, err := EncodeWAVPCM16LE(pcm, sampleRate)
	if err != nil {
		return Blob{}, err
	}
	return Blob{
		Data:        data,
		ContentType: ContentTypeWAV,
		Samples:     len(pcm) / 2,
		SampleRate:  sampleRate,
	}, nil
}
