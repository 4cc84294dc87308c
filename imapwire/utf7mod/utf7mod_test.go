package utf7mod

import "testing"

var codecTests = []struct {
	text string
	wire string
}{
	{text: "INBOX", wire: "INBOX"},
	{text: "&", wire: "&-"},
	{text: "a&b&c", wire: "a&-b&-c"},
	{text: "Entwürfe", wire: "Entw&APw-rfe"},
	{text: "Hello, 世界", wire: "Hello, &ThZ1TA-"},
	{text: "🤓", wire: "&2D7dEw-"},
	{text: "~peter/mail/台北/日本語", wire: "~peter/mail/&U,BTFw-/&ZeVnLIqe-"},
}

func TestEncode(t *testing.T) {
	for _, test := range codecTests {
		t.Run(test.text, func(t *testing.T) {
			if got := string(Encode(test.text)); got != test.wire {
				t.Errorf("Encode(%q)=%q, want %q", test.text, got, test.wire)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	for _, test := range codecTests {
		t.Run(test.text, func(t *testing.T) {
			got, err := Decode([]byte(test.wire))
			if err != nil {
				t.Fatal(err)
			}
			if got != test.text {
				t.Errorf("Decode(%q)=%q, want %q", test.wire, got, test.text)
			}
		})
	}
}

var badWire = []string{
	"&unterminated",
	"&***-",
	"&AP-", // odd number of UTF-16 bytes
	"&2D4-", // lone surrogate
}

func TestDecodeInvalid(t *testing.T) {
	for _, wire := range badWire {
		if dec, err := Decode([]byte(wire)); err == nil {
			t.Errorf("Decode(%q)=%q, want error", wire, dec)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, test := range codecTests {
		got, err := Decode(Encode(test.text))
		if err != nil {
			t.Fatalf("round trip %q: %v", test.text, err)
		}
		if got != test.text {
			t.Errorf("round trip %q=%q", test.text, got)
		}
	}
}

func BenchmarkAppendEncode(b *testing.B) {
	dst := make([]byte, 0, 1024)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, test := range codecTests {
			AppendEncode(dst, test.text)
		}
	}
}
