package textutil

import "testing"

func TestHasPricedTag(t *testing.T) {
	cases := []struct {
		tag  string
		want bool
	}{
		{"加起司(+30)", true},
		{"加蛋(+15)", true},
		{"大杯(+10)辣度可選", true},
		{"加起司", false},
		{"(+)", false},
		{"(30)", false},
		{"(+abc)", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := HasPricedTag(tc.tag); got != tc.want {
			t.Errorf("HasPricedTag(%q) = %v, want %v", tc.tag, got, tc.want)
		}
	}
}

func TestStripDecorative(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"🌟和牛漢堡", "和牛漢堡"},
		{"⭐ 招牌紅茶", "招牌紅茶"},
		{"和牛漢堡", "和牛漢堡"},
		{"🔥 麻辣鍋 🔥", "麻辣鍋"},
		{"  起司蛋餅  ", "起司蛋餅"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripDecorative(tc.in); got != tc.want {
			t.Errorf("StripDecorative(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripDecorativeIdempotent(t *testing.T) {
	inputs := []string{"🌟和牛漢堡", "⭐ 招牌紅茶", "普通品名", "🍜🍜 雙倍拉麵"}
	for _, in := range inputs {
		once := StripDecorative(in)
		twice := StripDecorative(once)
		if once != twice {
			t.Errorf("StripDecorative not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize("abc\x00def"); got != "abcdef" {
		t.Fatalf("Sanitize removed wrong bytes: %q", got)
	}
	if got := Sanitize("無NUL字串"); got != "無NUL字串" {
		t.Fatalf("Sanitize mangled clean string: %q", got)
	}
}
