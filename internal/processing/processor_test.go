package processing_test

import (
	"testing"
	"time"

	"github.com/DeafMist/vnnews-radar/backend/internal/processing"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "punctuation", input: "Xin chào!!!   Hà Nội", want: "Xin chào Hà Nội"},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "remove urls", input: "Xem https://vnexpress.net để biết", want: "Xem để biết"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processing.CleanText(tt.input); got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "tags then entities", input: "<p>Hello &amp; welcome</p>", want: "Hello & welcome"},
		{name: "encoded tags survive as text", input: "&lt;b&gt;bold&lt;/b&gt;", want: "<b>bold</b>"},
		{name: "image and link", input: `<a href="https://x.vn/a"><img src="https://x.vn/a.jpg" /></a></br>Giá vàng tăng`, want: "Giá vàng tăng"},
		{name: "unterminated tag", input: "Tin mới <img src=\"x", want: "Tin mới"},
		{name: "vietnamese entities", input: "Ng&#432;&#7901;i d&acirc;n", want: "Người dân"},
		{name: "whitespace", input: "<p>a</p>\n\n<p>b</p>", want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.PlainText(tt.input))
		})
	}
}

func TestDecodeEntities(t *testing.T) {
	require.Equal(t, `Tổng thống "Mỹ"`, processing.DecodeEntities("  Tổng thống &quot;Mỹ&quot; "))
	require.Equal(t, "", processing.DecodeEntities(""))
}

func TestExtractKeywords(t *testing.T) {
	text := "bão bão lũ lũ lũ miền trung và và mưa"
	got := processing.ExtractKeywords(text, 3, 2)
	want := []string{"lũ", "bão", "miền"}
	require.Equal(t, want, got)

	require.Nil(t, processing.ExtractKeywords("", 5, 3))
}

func TestExtractKeywordsIgnoresURLWords(t *testing.T) {
	text := "bão lũ lũ https://example.com/storm-news mưa"
	got := processing.ExtractKeywords(text, 3, 2)
	require.ElementsMatch(t, []string{"lũ", "bão", "mưa"}, got)
}

func TestPhrases(t *testing.T) {
	got := processing.Phrases("Giá vàng tăng mạnh, Hà Nội mưa lớn và gió", 2)
	require.Equal(t, []string{"giá vàng", "vàng tăng", "tăng mạnh", "hà nội", "nội mưa", "mưa lớn"}, got)

	require.Empty(t, processing.Phrases("", 2))
	require.Empty(t, processing.Phrases("năm 2024", 2))
}

func TestTokensDropsNumbersAndStopwords(t *testing.T) {
	require.Equal(t, []string{"bóng", "đá"}, processing.Tokens("Bóng đá của 2024", 2))
}

func TestDocumentID(t *testing.T) {
	id1 := processing.DocumentID("https://vnexpress.net/a-1.html")
	id2 := processing.DocumentID("https://vnexpress.net/a-1.html")
	require.Len(t, id1, 40)
	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, processing.DocumentID("https://vnexpress.net/a-2.html"))
}

func TestRemoveURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "no urls", input: "Hello world", want: "Hello world"},
		{name: "single url", input: "Check https://example.com for more", want: "Check   for more"},
		{name: "url only", input: "https://example.com", want: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.RemoveURLs(tt.input))
		})
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 15, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "vnexpress", raw: "Tue, 15 Oct 2024 10:00:00 +0700"},
		{name: "thanhnien two digit year", raw: "Tue, 15 Oct 24 10:00:00 +0700"},
		{name: "nhandan local", raw: "2024-10-15 10:00:00"},
		{name: "tuoitre gmt offset", raw: "Tue, 15 Oct 2024 10:00:00 GMT+7"},
		{name: "rfc3339", raw: "2024-10-15T10:00:00+07:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, want.Equal(processing.ParseTime(tt.raw)), processing.ParseTime(tt.raw).String())
		})
	}

	require.True(t, processing.ParseTime("").IsZero())
	require.True(t, processing.ParseTime("hôm qua").IsZero())
}
