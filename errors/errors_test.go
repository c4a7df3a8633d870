package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestIsFollowsWrapChain(t *testing.T) {
	base := New(CodeFontNotFound, "字体 %s 不存在", "Body")
	wrapped := fmt.Errorf("启动失败: %w", base)
	if !Is(wrapped, CodeFontNotFound) {
		t.Fatalf("expected FONT_NOT_FOUND in chain, got %q", GetCode(wrapped))
	}
	if Is(wrapped, CodeLayout) {
		t.Fatalf("unexpected LAYOUT_ERROR match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(CodeRaster, fs.ErrNotExist, "读取 %s", "a.svg")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("cause lost: %v", err)
	}
	want := "RASTER_ERROR: 读取 a.svg: file does not exist"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if got := UserMessage(err); got != "读取 a.svg: file does not exist" {
		t.Fatalf("UserMessage() = %q", got)
	}
}

func TestGetCodePlainError(t *testing.T) {
	if code := GetCode(errors.New("plain")); code != "" {
		t.Fatalf("plain error has code %q", code)
	}
	if msg := UserMessage(errors.New("plain")); msg != "plain" {
		t.Fatalf("UserMessage(plain) = %q", msg)
	}
}
