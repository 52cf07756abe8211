package marks

import "testing"

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{Key{Video: "a.mp4", Subtitle: "a.vtt"}, "marks:a.mp4::a.vtt"},
		{Key{Video: "a.mp4"}, "marks:a.mp4::none"},
		{Key{Video: "a.mp4", Subtitle: "a.vtt"}.Fallback(), "marks:a.mp4::none"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestParseKey(t *testing.T) {
	k, ok := ParseKey("marks:dir::odd.mp4::a.srt")
	if !ok || k.Video != "dir::odd.mp4" || k.Subtitle != "a.srt" {
		t.Errorf("unexpected key %+v (%v)", k, ok)
	}
	k, ok = ParseKey("marks:b.mp4::none")
	if !ok || k.Subtitle != "" {
		t.Errorf("expected none subtitle to parse as empty, got %+v", k)
	}
	if _, ok := ParseKey("other:b.mp4::none"); ok {
		t.Error("expected foreign key to be rejected")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"start": Start, "END": End, " e ": End} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKind("middle"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
