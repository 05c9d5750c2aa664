package envelope

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const sample = `{"event_id":"9ec79c33ec9942ab8353589fcb2e04dc","dsn":"https://key@o1.ingest.sentry.io/42"}
{"type":"attachment","length":9,"filename":"a.txt"}
line1
ab

{"type":"event"}
{"message":"hello","level":"error"}
`

func TestParse(t *testing.T) {
	env, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if env.DSN() != "https://key@o1.ingest.sentry.io/42" {
		t.Errorf("DSN() = %q", env.DSN())
	}
	if env.EventID() != "9ec79c33ec9942ab8353589fcb2e04dc" {
		t.Errorf("EventID() = %q", env.EventID())
	}
	if len(env.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(env.Items))
	}
	if env.Items[0].Type() != "attachment" || string(env.Items[0].Payload) != "line1\nab\n" {
		t.Errorf("attachment = %q %q", env.Items[0].Type(), env.Items[0].Payload)
	}
	if env.Items[1].Type() != TypeEvent || string(env.Items[1].Payload) != `{"message":"hello","level":"error"}` {
		t.Errorf("event = %q %q", env.Items[1].Type(), env.Items[1].Payload)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "  \n", ErrEmpty},
		{"truncated", "{}\n{\"type\":\"event\",\"length\":50}\n{}", ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.body)); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Parse([]byte("not json\n")); err == nil {
		t.Error("expected error for invalid header")
	}
	if _, err := Parse([]byte("[1]\n")); err == nil {
		t.Error("expected error for non-object header")
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	env, err := Parse([]byte(`{"dsn":"https://k@h/1"}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(env.Items) != 0 {
		t.Errorf("items = %d, want 0", len(env.Items))
	}
}

func TestEncode_RewritesLengths(t *testing.T) {
	env, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	env.Items[1].Payload = []byte(`{"message":"[Email] wrote"}`)

	out, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := `{"event_id":"9ec79c33ec9942ab8353589fcb2e04dc","dsn":"https://key@o1.ingest.sentry.io/42"}
{"type":"attachment","length":9,"filename":"a.txt"}
line1
ab

{"type":"event","length":27}
{"message":"[Email] wrote"}
`
	if string(out) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", out, want)
	}

	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse() error = %v", err)
	}
	if string(again.Items[1].Payload) != `{"message":"[Email] wrote"}` {
		t.Errorf("round trip payload = %q", again.Items[1].Payload)
	}
}

func TestReadBody(t *testing.T) {
	payload := []byte(sample)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(payload)
	gw.Close()

	var zs bytes.Buffer
	zw, _ := zstd.NewWriter(&zs)
	zw.Write(payload)
	zw.Close()

	tests := []struct {
		name     string
		body     []byte
		encoding string
	}{
		{"identity", payload, ""},
		{"gzip", gz.Bytes(), "gzip"},
		{"zstd", zs.Bytes(), "ZSTD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadBody(bytes.NewReader(tt.body), tt.encoding, 1<<20)
			if err != nil {
				t.Fatalf("ReadBody() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("ReadBody() = %q", got)
			}
		})
	}
}

func TestReadBody_Limits(t *testing.T) {
	if _, err := ReadBody(strings.NewReader("0123456789"), "", 5); !errors.Is(err, ErrTooLarge) {
		t.Errorf("error = %v, want ErrTooLarge", err)
	}
	if _, err := ReadBody(strings.NewReader("x"), "br", 5); err == nil {
		t.Error("expected error for unsupported encoding")
	}
}
