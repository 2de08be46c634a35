package twilio

import (
	"testing"
)

func TestDecodeStreamEvent_Start(t *testing.T) {
	raw := []byte(`{"event":"start","start":{"streamSid":"MZ9","callSid":"CA7",
		"customParameters":{"firstMessage":"Hoş geldiniz","callerNumber":"+905550001122"}}}`)
	ev, err := DecodeStreamEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	start, ok := ev.(StartEvent)
	if !ok {
		t.Fatalf("expected StartEvent, got %T", ev)
	}
	if start.StreamSID != "MZ9" || start.CallSID != "CA7" {
		t.Fatalf("wrong ids: %+v", start)
	}
	if start.FirstMessage != "Hoş geldiniz" || start.CallerNumber != "+905550001122" {
		t.Fatalf("wrong parameters: %+v", start)
	}
}

func TestDecodeStreamEvent_Media(t *testing.T) {
	ev, err := DecodeStreamEvent([]byte(`{"event":"media","media":{"payload":"AAECAwQ="}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	media, ok := ev.(MediaEvent)
	if !ok || media.Payload != "AAECAwQ=" {
		t.Fatalf("got %#v", ev)
	}
}

func TestDecodeStreamEvent_ClearAndStop(t *testing.T) {
	if ev, err := DecodeStreamEvent([]byte(`{"event":"clear"}`)); err != nil {
		t.Fatalf("clear: %v", err)
	} else if _, ok := ev.(ClearEvent); !ok {
		t.Fatalf("expected ClearEvent, got %T", ev)
	}
	if ev, err := DecodeStreamEvent([]byte(`{"event":"stop"}`)); err != nil {
		t.Fatalf("stop: %v", err)
	} else if _, ok := ev.(StopEvent); !ok {
		t.Fatalf("expected StopEvent, got %T", ev)
	}
}

func TestDecodeStreamEvent_Invalid(t *testing.T) {
	if _, err := DecodeStreamEvent([]byte(`{"event":"dtmf"}`)); err == nil {
		t.Fatalf("unknown event decoded without error")
	}
	if _, err := DecodeStreamEvent([]byte(`{"event":"media"}`)); err == nil {
		t.Fatalf("media without body decoded without error")
	}
	if _, err := DecodeStreamEvent([]byte(`}{`)); err == nil {
		t.Fatalf("malformed json decoded without error")
	}
}

func TestMarshalMedia(t *testing.T) {
	raw, err := MarshalMedia("MZ9", "c29tZSBhdWRpbw==")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"media","streamSid":"MZ9","media":{"payload":"c29tZSBhdWRpbw=="}}`
	if string(raw) != want {
		t.Fatalf("got %s\nwant %s", raw, want)
	}
}
