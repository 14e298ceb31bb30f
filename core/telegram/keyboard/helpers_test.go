package keyboard

import "testing"

func TestInlineButtonsKeepRawData(t *testing.T) {
	m := InlineButtonsRows([]InlineBtn{{Text: "One", Data: "doc_1"}}, nil, []InlineBtn{{Text: "Two", Data: "doc_2"}})
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("expected two rows, got %d", len(m.InlineKeyboard))
	}
	if got := m.InlineKeyboard[1][0].Data; got != "doc_2" {
		t.Fatalf("callback data rewritten: %q", got)
	}
}

func TestReplyButtonsSkipsEmptyRows(t *testing.T) {
	m := ReplyButtons([]string{"📚 Document List", "💳 Subscribe"}, nil, []string{"👤 My Subscription"})
	if len(m.ReplyKeyboard) != 2 {
		t.Fatalf("expected two rows, got %d", len(m.ReplyKeyboard))
	}
	if !m.ResizeKeyboard {
		t.Fatalf("expected resized keyboard")
	}
}
