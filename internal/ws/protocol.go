package ws

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Negotiated wire protocols.
const (
	ProtocolJSON     = "json"
	ProtocolProtobuf = "protobuf"

	SubprotocolJSON     = "json.gexa.v1"
	SubprotocolProtobuf = "protobuf.gexa.v1"
)

// Type URLs carried by binary frames. Control frames hold a
// google.protobuf.Struct; analysis frames hold a zstd-compressed Struct.
const (
	TypeURLControl  = "type.gexa/control"
	TypeURLAnalysis = "type.gexa/analysis"
)

// Upstream message types for internal routing
type (
	joinGroupRequest struct {
		group string
		ackID *uint64
	}
	leaveGroupRequest struct {
		group string
		ackID *uint64
	}
	pingRequest struct{}
)

// parseUpstreamMessage parses a binary frame: an Any wrapping a control Struct.
func parseUpstreamMessage(data []byte) (any, error) {
	var envelope anypb.Any
	if err := proto.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal upstream message: %w", err)
	}
	if envelope.GetTypeUrl() != TypeURLControl {
		return nil, fmt.Errorf("unexpected type url: %s", envelope.GetTypeUrl())
	}

	var body structpb.Struct
	if err := proto.Unmarshal(envelope.GetValue(), &body); err != nil {
		return nil, fmt.Errorf("unmarshal control struct: %w", err)
	}
	return parseControl(body.AsMap())
}

// parseUpstreamMessageJSON parses a JSON-encoded upstream message.
func parseUpstreamMessageJSON(data []byte) (any, error) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal JSON upstream message: %w", err)
	}
	return parseControl(msg)
}

func parseControl(msg map[string]any) (any, error) {
	msgType, _ := msg["type"].(string)

	switch msgType {
	case "joinGroup":
		group, _ := msg["group"].(string)
		return &joinGroupRequest{group: group, ackID: ackIDOf(msg)}, nil

	case "leaveGroup":
		group, _ := msg["group"].(string)
		return &leaveGroupRequest{group: group, ackID: ackIDOf(msg)}, nil

	case "ping":
		return &pingRequest{}, nil

	default:
		return nil, fmt.Errorf("unknown message type: %q", msgType)
	}
}

func ackIDOf(msg map[string]any) *uint64 {
	v, ok := msg["ackId"].(float64)
	if !ok || v < 0 {
		return nil
	}
	id := uint64(v)
	return &id
}

// buildControl encodes a control message for the given protocol.
func buildControl(protocol string, fields map[string]any) []byte {
	if protocol == ProtocolJSON {
		data, _ := json.Marshal(fields)
		return data
	}

	body, err := structpb.NewStruct(fields)
	if err != nil {
		return nil
	}
	value, _ := proto.Marshal(body)
	data, _ := proto.Marshal(&anypb.Any{TypeUrl: TypeURLControl, Value: value})
	return data
}

func buildConnectedMessage(protocol, connectionID, userID string) []byte {
	return buildControl(protocol, map[string]any{
		"type":         "system",
		"event":        "connected",
		"connectionId": connectionID,
		"userId":       userID,
	})
}

func buildAckMessage(protocol string, ackID uint64, success bool) []byte {
	return buildControl(protocol, map[string]any{
		"type":    "ack",
		"ackId":   ackID,
		"success": success,
	})
}

func buildPongMessage(protocol string) []byte {
	return buildControl(protocol, map[string]any{"type": "pong"})
}

// buildDataMessage wraps a compressed analysis payload for protobuf clients.
func buildDataMessage(compressed []byte) []byte {
	data, _ := proto.Marshal(&anypb.Any{TypeUrl: TypeURLAnalysis, Value: compressed})
	return data
}

// buildDataMessageJSON embeds the analysis JSON directly for JSON clients.
func buildDataMessageJSON(group string, rawJSON json.RawMessage) []byte {
	msg := map[string]any{
		"type":     "message",
		"from":     "group",
		"group":    group,
		"dataType": "json",
		"data":     rawJSON,
	}
	data, _ := json.Marshal(msg)
	return data
}
