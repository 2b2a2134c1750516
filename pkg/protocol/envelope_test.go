package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		msgType string
		payload any
		wantErr bool
	}{
		{
			name:    "chat message",
			msgType: TypeChatMessage,
			payload: ChatMessage{Peer: PeerInfo{IP: "10.0.0.2", Port: 4545}, Text: "hello"},
		},
		{
			name:    "file outcome",
			msgType: TypeFileReceived,
			payload: FileOutcome{Name: "a.txt", Size: 3, Verified: true},
		},
		{
			name:    "nil payload",
			msgType: TypeConnectionClosed,
		},
		{
			name:    "unmarshalable payload",
			msgType: TypeChatMessage,
			payload: make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := NewEnvelope(tt.msgType, 4, at, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEnvelope() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if err := env.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if env.ConnID != 4 || !env.At.Equal(at) {
				t.Errorf("ConnID = %d, At = %s", env.ConnID, env.At)
			}
			if tt.payload == nil && len(env.Payload) != 0 {
				t.Errorf("Payload = %s, want empty", env.Payload)
			}
		})
	}
}

func TestNewEnvelope_UniqueMsgIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		env, err := NewEnvelope(TypeChatSent, 1, time.Now(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if seen[env.MsgID] {
			t.Fatalf("duplicate msg_id %s", env.MsgID)
		}
		seen[env.MsgID] = true
	}
}

func TestParseEnvelope_Chat(t *testing.T) {
	env, err := NewEnvelope(TypeChatMessage, 7, time.Now(), ChatMessage{
		Peer: PeerInfo{IP: "192.168.1.4", Port: 5000},
		Text: "hi there",
	})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	decoded, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if decoded.ConnID != 7 || decoded.MsgID != env.MsgID {
		t.Errorf("decoded = %+v", decoded)
	}
	var msg ChatMessage
	if err := decoded.Decode(&msg); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Text != "hi there" || msg.Peer.Port != 5000 {
		t.Errorf("payload = %+v", msg)
	}
}

func TestParseEnvelope_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json"},
		{"wrong version", `{"v":9,"type":"chat_sent","msg_id":"m"}`},
		{"unknown type", `{"v":1,"type":"bogus","msg_id":"m"}`},
		{"missing msg_id", `{"v":1,"type":"chat_sent"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEnvelope([]byte(tt.data)); !errors.Is(err, ErrBadEnvelope) {
				t.Errorf("ParseEnvelope() error = %v, want ErrBadEnvelope", err)
			}
		})
	}
}

func TestEnvelope_DecodeEmptyPayload(t *testing.T) {
	env, _ := NewEnvelope(TypeConnectionClosed, 1, time.Now(), nil)
	var out ConnectionState
	if err := env.Decode(&out); err == nil {
		t.Error("Decode() on empty payload should fail")
	}
}
