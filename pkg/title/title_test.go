package title

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		delim string
		want  Annotated
	}{
		{"no delimiter in title", "Buy milk", "‣", Annotated{Headline: "Buy milk"}},
		{"empty delimiter", "Buy ‣ milk", "", Annotated{Headline: "Buy ‣ milk"}},
		{"padded", "Report ‣ 60%", "‣", Annotated{Headline: "Report", Metadata: "60%", HasMetadata: true}},
		{"unpadded", "Report‣60%", "‣", Annotated{Headline: "Report", Metadata: "60%", HasMetadata: true}},
		{"first occurrence wins", "a ‣ b ‣ c", "‣", Annotated{Headline: "a", Metadata: "b ‣ c", HasMetadata: true}},
		{"empty metadata", "a ‣", "‣", Annotated{Headline: "a", HasMetadata: true}},
		{"multibyte delimiter", "dings ÜÄ* ÄÄ*Ä:;;?=)(/_:", "ÜÄ*", Annotated{Headline: "dings", Metadata: "ÄÄ*Ä:;;?=)(/_:", HasMetadata: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.in, tt.delim)
			if got != tt.want {
				t.Errorf("Decode(%q, %q) = %+v, want %+v", tt.in, tt.delim, got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	headlines := []string{"Report", "Buy milk", "https://x.y/z (Sprint 1)", "Ünïcödé ✓"}
	metas := []string{"60%", "◑ 50 %", "a ‣ b"}
	for _, h := range headlines {
		for _, m := range metas {
			encoded := Encode(h, "‣", m)
			got := Decode(encoded, "‣")
			if got.Headline != h || got.Metadata != m || !got.HasMetadata {
				t.Errorf("Decode(Encode(%q, %q)) = %+v", h, m, got)
			}
		}
	}
}

func TestEncode(t *testing.T) {
	if got := Encode("Report", "‣", "60%"); got != "Report ‣ 60%" {
		t.Errorf("Encode = %q", got)
	}
	if got := Encode("Report   ", "‣", "60%"); got != "Report ‣ 60%" {
		t.Errorf("Encode trailing space = %q", got)
	}
	if got := Encode("Report ", "‣", ""); got != "Report " {
		t.Errorf("Encode without metadata = %q, want headline unchanged", got)
	}
}

func TestPrependReference(t *testing.T) {
	tests := []struct {
		in, delim, ref, want string
	}{
		{"google", "-", "https://google1.com", "https://google1.com (google)"},
		{"google - X", "-", "https://google3.com", "https://google3.com (google) - X"},
		{"Buy milk ‣ ◑ 50 %", "‣", "https://d/1", "https://d/1 (Buy milk) ‣ ◑ 50 %"},
		{"Buy milk", "", "https://d/1", "https://d/1 (Buy milk)"},
	}
	for _, tt := range tests {
		if got := PrependReference(tt.in, tt.delim, tt.ref); got != tt.want {
			t.Errorf("PrependReference(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeadlineAndAlnum(t *testing.T) {
	if got := Headline("Plan trip! ‣ ● 100 %", "‣"); got != "Plan trip!" {
		t.Errorf("Headline = %q", got)
	}
	if got := Alnum("Plan trip! (2024)"); got != "Plantrip2024" {
		t.Errorf("Alnum = %q", got)
	}
	if Contains("anything", "") {
		t.Error("empty marker must not match")
	}
}
