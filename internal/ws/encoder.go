package ws

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dgnsrekt/gex-analytics/internal/analyzer"
)

// Encoder converts analysis results to both wire formats.
type Encoder struct {
	zstdEncoder *zstd.Encoder
}

// NewEncoder creates a new Encoder with Zstd compression.
func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc}, nil
}

// EncodeAnalysis returns the JSON payload and the Zstd-compressed
// protobuf Struct payload for res.
func (e *Encoder) EncodeAnalysis(res *analyzer.AnalysisResult) (jsonPayload, protoPayload []byte, err error) {
	jsonPayload, err = json.Marshal(res)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal analysis json: %w", err)
	}

	// Struct only accepts JSON-shaped values, so go through the generic form
	var generic map[string]any
	if err := json.Unmarshal(jsonPayload, &generic); err != nil {
		return nil, nil, fmt.Errorf("unmarshal analysis json: %w", err)
	}
	body, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, nil, fmt.Errorf("build struct: %w", err)
	}

	pbData, err := proto.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal protobuf: %w", err)
	}

	return jsonPayload, e.zstdEncoder.EncodeAll(pbData, nil), nil
}

// Close releases encoder resources.
func (e *Encoder) Close() {
	if e.zstdEncoder != nil {
		e.zstdEncoder.Close()
	}
}

// DecodeAnalysis reverses the protobuf payload produced by EncodeAnalysis.
func DecodeAnalysis(compressed []byte) (*structpb.Struct, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	pbData, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	var body structpb.Struct
	if err := proto.Unmarshal(pbData, &body); err != nil {
		return nil, fmt.Errorf("unmarshal struct: %w", err)
	}
	return &body, nil
}
