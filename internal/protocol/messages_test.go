package protocol

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestParseClientMessageAudioData(t *testing.T) {
	raw := []byte(`{"type":"audio_data","audio":"` + base64.StdEncoding.EncodeToString([]byte("webm-bytes")) + `"}`)
	parsed, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	msg, ok := parsed.(AudioData)
	if !ok {
		t.Fatalf("parsed type = %T, want AudioData", parsed)
	}
	audio, err := msg.DecodeAudio()
	if err != nil {
		t.Fatalf("DecodeAudio() error = %v", err)
	}
	if string(audio) != "webm-bytes" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestParseClientMessageEmptyAudioIsValid(t *testing.T) {
	parsed, err := ParseClientMessage([]byte(`{"type":"audio_data"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	msg := parsed.(AudioData)
	audio, err := msg.DecodeAudio()
	if err != nil {
		t.Fatalf("DecodeAudio() error = %v", err)
	}
	if audio != nil {
		t.Fatalf("audio = %v, want nil", audio)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"mystery"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsBadJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{`)); err == nil {
		t.Fatalf("expected envelope error")
	}
}

func TestDecodeAudioRejectsBadBase64(t *testing.T) {
	msg := AudioData{Type: TypeAudioData, Audio: "!!not-base64!!"}
	if _, err := msg.DecodeAudio(); err == nil {
		t.Fatalf("expected decode error")
	}
}
