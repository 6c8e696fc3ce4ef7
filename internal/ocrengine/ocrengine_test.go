package ocrengine

import "testing"

func TestMatchesCaseInsensitiveByDefault(t *testing.T) {
	if !Matches("Hello  World\n", "hello world", false) {
		t.Fatal("expected case-insensitive whitespace-normalized match")
	}
}

func TestMatchesCaseSensitiveRejectsDifferentCase(t *testing.T) {
	if Matches("Hello World", "hello world", true) {
		t.Fatal("expected case-sensitive comparison to reject mismatched case")
	}
}

func TestMatchesNormalizesInternalWhitespace(t *testing.T) {
	if !Matches("  SN   1234 \t ", "SN 1234", true) {
		t.Fatal("expected collapsed whitespace to still match")
	}
}

func TestMatchesRejectsDifferentText(t *testing.T) {
	if Matches("ABC123", "ABC124", false) {
		t.Fatal("expected mismatched text to fail")
	}
}
