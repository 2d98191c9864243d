package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "binding error",
			code:    CodeMissingCapability,
			wantMsg: "Host is missing a required capability",
			wantCat: CategoryBinding,
		},
		{
			name:    "resource error",
			code:    CodeLoaderRequired,
			wantMsg: "Resource loader is required",
			wantCat: CategoryResource,
		},
		{
			name:    "api error",
			code:    CodeRequestFailed,
			wantMsg: "API request failed",
			wantCat: CategoryAPI,
		},
		{
			name:    "unknown error code",
			code:    "T999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	err := New(CodeDuplicateProperty).WithDetail(`"name" declared twice`)
	want := `T002: Duplicate property: "name" declared twice`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &Error{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}

	wrapped := New(CodeRequestFailed).Wrap(fmt.Errorf("connection refused"))
	if !strings.HasSuffix(wrapped.Error(), ": connection refused") {
		t.Errorf("Error() = %q, want cause suffix", wrapped.Error())
	}
}

func TestError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("init card: %w", New(CodeMissingCapability).WithDetail("no SetAttribute"))

	if !stderrors.Is(err, New(CodeMissingCapability)) {
		t.Error("errors.Is should match by code through wrapping")
	}
	if stderrors.Is(err, New(CodeInvalidHost)) {
		t.Error("errors.Is should not match a different code")
	}
	if CodeOf(err) != CodeMissingCapability {
		t.Errorf("CodeOf = %q", CodeOf(err))
	}
	if CodeOf(fmt.Errorf("plain")) != "" {
		t.Error("CodeOf plain error should be empty")
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner")
	outer := New(CodeConfigInvalid).Wrap(inner)

	if outer.Unwrap() != inner {
		t.Error("Unwrap() should return wrapped error")
	}
	if !stderrors.Is(outer, inner) {
		t.Error("errors.Is should reach the wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeRequestFailed) != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	te := New(CodeInvalidHost)
	if FromError(fmt.Errorf("ctx: %w", te), CodeRequestFailed) != te {
		t.Error("FromError should return the existing *Error")
	}

	std := fmt.Errorf("boom")
	result := FromError(std, CodeRequestFailed)
	if result.Wrapped != std || result.Code != CodeRequestFailed {
		t.Errorf("FromError = %+v", result)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeMissingCapability).
		WithDetail("host *Card does not implement SetAttribute").
		WithSuggestion("embed element.Base")

	out := err.Format()
	for _, want := range []string{
		"ERROR T001: Host is missing a required capability",
		"host *Card does not implement SetAttribute",
		"Hint: embed element.Base",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	err := New(CodeLoaderRequired).Wrap(fmt.Errorf("nil loader"))

	var decoded map[string]any
	if jerr := json.Unmarshal([]byte(err.FormatJSON()), &decoded); jerr != nil {
		t.Fatalf("invalid JSON: %v", jerr)
	}
	if decoded["code"] != CodeLoaderRequired {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["category"] != string(CategoryResource) {
		t.Errorf("category = %v", decoded["category"])
	}
	if decoded["cause"] != "nil loader" {
		t.Errorf("cause = %v", decoded["cause"])
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, fmt.Errorf("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("Fprint plain = %q", buf.String())
	}

	buf.Reset()
	Fprint(&buf, New(CodeBadArguments))
	if !strings.Contains(buf.String(), "ERROR T040") {
		t.Errorf("Fprint coded = %q", buf.String())
	}
}

func TestFprintJSON(t *testing.T) {
	var buf bytes.Buffer
	FprintJSON(&buf, fmt.Errorf("run: %w", New(CodeConfigInvalid).WithDetail("PORT out of range")))

	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("not JSON: %q", buf.String())
	}
	if decoded["code"] != CodeConfigInvalid || decoded["detail"] != "PORT out of range" {
		t.Errorf("decoded = %v", decoded)
	}

	buf.Reset()
	FprintJSON(&buf, fmt.Errorf("plain failure"))
	if got := strings.TrimSpace(buf.String()); got != `{"message":"plain failure"}` {
		t.Errorf("plain = %s", got)
	}
}

func TestColorsCanBeDisabled(t *testing.T) {
	DisableColors()
	if got := red("x"); got != "x" {
		t.Errorf("red with colors disabled = %q", got)
	}
	EnableColors()
	if got := red("x"); got != colorRed+"x"+colorReset {
		t.Errorf("red with colors enabled = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six seven" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}

func TestAllCodesRegistered(t *testing.T) {
	codes := AllCodes()
	if len(codes) != len(registry) {
		t.Fatalf("AllCodes len = %d", len(codes))
	}
	for _, code := range codes {
		tpl, ok := GetTemplate(code)
		if !ok || tpl.Message == "" || tpl.Category == "" {
			t.Errorf("code %s has incomplete template", code)
		}
	}
}
