package domain

import (
	"errors"
	"testing"
)

func TestTagKeyRoundTrip(t *testing.T) {
	tags := []Tag{
		{0x0010, 0x0020},
		{0x0008, 0x0018},
		{0x0020, 0x000D},
		{0x7FE0, 0x0010},
		{0x0000, 0x0000},
		{0xFFFF, 0xFFFF},
	}
	for _, tag := range tags {
		key := tag.Key()
		if len(key) != 9 {
			t.Fatalf("key %q has unexpected length", key)
		}
		parsed, err := ParseTag(key)
		if err != nil {
			t.Fatalf("parse %q: %v", key, err)
		}
		if parsed != tag {
			t.Fatalf("round trip %v -> %q -> %v", tag, key, parsed)
		}
	}
}

func TestParseTagAcceptsLowercaseAndWhitespace(t *testing.T) {
	parsed, err := ParseTag("  0020,000d ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != TagStudyInstanceUID {
		t.Fatalf("expected %v, got %v", TagStudyInstanceUID, parsed)
	}
	if parsed.Key() != "0020,000D" {
		t.Fatalf("normalized key %q", parsed.Key())
	}
}

func TestParseTagRejectsMalformedKeys(t *testing.T) {
	bad := []string{
		"",
		"00100020",
		"010,0020",
		"0010,020",
		"0010,0020,0030",
		"zzzz,0020",
		"0010,zzzz",
	}
	for _, key := range bad {
		if _, err := ParseTag(key); err == nil {
			t.Fatalf("expected error for %q", key)
		} else if !errors.Is(err, ErrParse) {
			t.Fatalf("expected ErrParse for %q, got %v", key, err)
		}
	}
}
