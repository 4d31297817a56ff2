package feedparser_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/vnnews-radar/backend/internal/feedparser"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>Thế giới - VnExpress RSS</title>
  <link>https://vnexpress.net/the-gioi</link>
  <item>
    <title>Bão Yagi đổ bộ</title>
    <link>https://vnexpress.net/bao-yagi-1.html</link>
    <guid>https://vnexpress.net/bao-yagi-1.html</guid>
    <pubDate>Tue, 15 Oct 2024 10:00:00 +0700</pubDate>
    <description><![CDATA[<a href="https://vnexpress.net/bao-yagi-1.html"><img src="https://i1-vnexpress.vnecdn.net/yagi.jpg"></a></br>Bão mạnh nhất năm]]></description>
    <enclosure url="https://i1-vnexpress.vnecdn.net/yagi-enc.jpg" type="image/jpeg" length="1"/>
  </item>
  <item>
    <title>Không có guid</title>
    <link>https://vnexpress.net/khong-guid-2.html</link>
    <description>&lt;p&gt;Hello &amp;amp; welcome&lt;/p&gt;</description>
    <media:thumbnail url="https://i1-vnexpress.vnecdn.net/thumb.jpg"/>
    <enclosure url="https://cdn.example/podcast.mp3" type="audio/mpeg" length="1"/>
  </item>
  <item>
    <title>Không có ảnh</title>
    <guid isPermaLink="false">vne-3</guid>
  </item>
</channel>
</rss>`

func TestParseEntries(t *testing.T) {
	entries, err := feedparser.New().Parse([]byte(sampleFeed))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	require.Equal(t, "https://vnexpress.net/bao-yagi-1.html", first.GUID)
	require.Equal(t, "https://vnexpress.net/bao-yagi-1.html", first.Link)
	require.Equal(t, "Bão Yagi đổ bộ", first.Title)
	require.Contains(t, first.Description, `<img src="https://i1-vnexpress.vnecdn.net/yagi.jpg">`)
	require.Equal(t, "Tue, 15 Oct 2024 10:00:00 +0700", first.Published)
	require.NotNil(t, first.PublishedParsed)
	require.Contains(t, first.Images, "https://i1-vnexpress.vnecdn.net/yagi-enc.jpg")

	second := entries[1]
	require.Empty(t, second.GUID)
	require.Equal(t, "https://vnexpress.net/khong-guid-2.html", second.Link)
	require.Equal(t, []string{"https://i1-vnexpress.vnecdn.net/thumb.jpg"}, second.Images)
	require.Contains(t, second.Description, "<p>")

	third := entries[2]
	require.Equal(t, "vne-3", third.GUID)
	require.Empty(t, third.Link)
	require.Empty(t, third.Images)
	require.Nil(t, third.PublishedParsed)
}

func TestParseRejectsNonFeed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: "   "},
		{name: "html page", content: "<html><body>Bảo trì hệ thống</body></html>"},
		{name: "json", content: `{"items": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := feedparser.New().Parse([]byte(tt.content))
			var parseErr *feedparser.ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
		})
	}
}

func TestParseRejectsFeedWithoutItems(t *testing.T) {
	_, err := feedparser.New().Parse([]byte(`<rss version="2.0"><channel><title>x</title></channel></rss>`))
	require.ErrorIs(t, err, feedparser.ErrNoItems)
}

func TestParseAtom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Nhân Dân</title>
  <entry>
    <title>Tin Atom</title>
    <id>urn:nhandan:1</id>
    <link href="https://nhandan.vn/tin-atom.html"/>
    <updated>2024-10-15T10:00:00+07:00</updated>
    <summary>Tóm tắt</summary>
  </entry>
</feed>`
	entries, err := feedparser.New().Parse([]byte(atom))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "urn:nhandan:1", entries[0].GUID)
	require.Equal(t, "https://nhandan.vn/tin-atom.html", entries[0].Link)
	require.Equal(t, "2024-10-15T10:00:00+07:00", entries[0].Published)
	require.NotNil(t, entries[0].PublishedParsed)
}

func TestParseSharedParserConcurrently(t *testing.T) {
	p := feedparser.New()
	const workers = 8

	counts := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries, err := p.Parse([]byte(sampleFeed))
			counts[i], errs[i] = len(entries), err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, 3, counts[i])
	}
}
