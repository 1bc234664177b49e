package comment

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"strips html tag", "hello <b>world</b>", "hello world"},
		{"strips nested tag remnants", "<<b>>boo<</b>>", "boo"},
		{"strips script tag", "<script>alert(1)</script>ok", "alert(1)ok"},
		{"collapses long whitespace run", "a    b", "a b"},
		{"keeps short whitespace run", "a  b", "a  b"},
		{"trims edges", "  hi  ", "hi"},
		{"empty", "", ""},
		{"only tags", "<br><hr>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	v := NewValidator(nil)
	long := strings.Repeat("abcde ", 100) // 600 chars

	got := v.Sanitize(long)
	if n := len([]rune(got)); n > DefaultMaxLength {
		t.Errorf("Sanitize left %d runes, want <= %d", n, DefaultMaxLength)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	v := NewValidator(nil)

	inputs := []string{
		"hello world",
		"  spaced    out   text  ",
		"<b>bold</b> and <<i>>tricky<</i>>",
		strings.Repeat("x", 500),
		strings.Repeat("word ", 80),
		"日本語のコメント　　　です",
		"",
	}

	for _, in := range inputs {
		once := v.Sanitize(in)
		twice := v.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestValidate(t *testing.T) {
	v := NewValidator([]string{"badword"})

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"normal comment", "this stream is great", true},
		{"japanese comment", "すごい！いい配信ですね", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"too long", strings.Repeat("a", 150) + strings.Repeat("b", 100), false},
		{"banned word", "you are a badword here", false},
		{"banned word case insensitive", "BADWORD!!", false},
		{"char flood", strings.Repeat("a", 20), false},
		{"char flood boundary below", strings.Repeat("a", 14) + " ok", true},
		{"word flood", "lol lol lol lol lol", false},
		{"short words not word flood", "go go go go go go", true},
		{"all caps", "THIS IS ALL SHOUTING", false},
		{"short caps allowed", "WOW", true},
		{"mostly symbols", "???!!!???!!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.input)
			if res.Valid != tt.valid {
				t.Errorf("Validate(%q).Valid = %v, want %v (errors: %v)",
					tt.input, res.Valid, tt.valid, res.Errors)
			}
			if !res.Valid && len(res.Errors) == 0 {
				t.Errorf("Validate(%q) invalid but no errors reported", tt.input)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	v := NewValidator([]string{"spam"})

	// Banned word plus a character flood in one message.
	res := v.Validate("spam " + strings.Repeat("z", 20))
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if len(res.Errors) < 2 {
		t.Errorf("expected at least 2 errors, got %v", res.Errors)
	}
}

func TestIsValidCommand(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"", true},
		{"   ", true},
		{"ue", true},
		{"ue red", true},
		{"shita blue small", true},
		{"big green naka", true},
		{"UE RED", true}, // tokens are case-insensitive
		{"sideways", false},
		{"ue mauve", false},
		{"red; drop table", false},
	}

	for _, tt := range tests {
		t.Run("cmd_"+tt.command, func(t *testing.T) {
			if got := IsValidCommand(tt.command); got != tt.want {
				t.Errorf("IsValidCommand(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    Style
	}{
		{"empty uses defaults", "", Style{PositionScroll, "#FFFFFF", SizeMedium}},
		{"ue red", "ue red", Style{PositionTop, "#FF0000", SizeMedium}},
		{"bottom synonym", "shita", Style{PositionBottom, "#FFFFFF", SizeMedium}},
		{"size override", "big", Style{PositionScroll, "#FFFFFF", SizeBig}},
		{"first color wins", "red blue", Style{PositionScroll, "#FF0000", SizeMedium}},
		{"unknown tokens ignored", "warp red plaid", Style{PositionScroll, "#FF0000", SizeMedium}},
		{"full set", "bottom purple small", Style{PositionBottom, "#C000FF", SizeSmall}},
		{"case insensitive", "UE Red", Style{PositionTop, "#FF0000", SizeMedium}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.command); got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.command, got, tt.want)
			}
		})
	}
}
