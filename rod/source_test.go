package rod_test

import (
	"context"
	"testing"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/images"
	"github.com/fwojciec/subgrab/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves canned HTML instead of driving a browser.
type stubFetcher struct {
	html    string
	err     error
	lastURL string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.lastURL = url
	return f.html, f.err
}

func (f *stubFetcher) FetchScrolled(_ context.Context, url string, _ int) (string, error) {
	f.lastURL = url
	return f.html, f.err
}

func (f *stubFetcher) Close() error { return nil }

func newTestSource(t *testing.T, fetcher subgrab.Fetcher) *rod.Source {
	t.Helper()
	svc, err := images.NewService(t.TempDir())
	require.NoError(t, err)
	return rod.NewSource("golang", svc, rod.WithFetcher(fetcher))
}

const listingHTML = `<html><body>
<shreddit-post id="t3_aaa" post-title="First post" created-timestamp="2024-01-02T03:04:05.000Z" content-href="https://i.redd.it/pic1.jpg">
	<div slot="text-body"><p>Some <strong>bold</strong> text.</p></div>
</shreddit-post>
<shreddit-post id="t3_bbb" post-title="Second post" created-timestamp="2024-01-01T00:00:00.000Z">
	<div slot="text-body"></div>
</shreddit-post>
<shreddit-post id="t3_aaa" post-title="First post again" created-timestamp="2024-01-02T03:04:05.000Z"></shreddit-post>
</body></html>`

const commentsHTML = `<html><body>
<shreddit-comment thingid="t1_c1" parentid="" postid="t3_aaa" depth="0">
	<time datetime="2024-01-02T04:00:00.000Z"></time>
	<div slot="comment"><p>Top level reply</p></div>
</shreddit-comment>
<shreddit-comment thingid="t1_c2" parentid="t1_c1" postid="t3_aaa" depth="1">
	<time datetime="2024-01-02T05:00:00.000Z"></time>
	<div slot="comment"><p>Nested with https://i.redd.it/pic2.png inline</p></div>
</shreddit-comment>
</body></html>`

func TestSourceFetchPosts(t *testing.T) {
	t.Parallel()

	t.Run("extracts rendered posts", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{html: listingHTML}
		src := newTestSource(t, fetcher)

		var posts []*subgrab.Post
		for p, err := range src.FetchPosts(context.Background(), subgrab.FetchOptions{}) {
			require.NoError(t, err)
			posts = append(posts, p)
		}

		require.Len(t, posts, 2, "repeated feed entries collapse to one")
		assert.Equal(t, rod.DefaultBaseURL+"/r/golang/new/", fetcher.lastURL)

		first := posts[0]
		assert.Equal(t, "aaa", first.ID)
		assert.Equal(t, "First post", first.Title)
		assert.Contains(t, first.Text, "**bold**")
		assert.Equal(t, int64(1704164645), first.CreatedUTC)
		assert.Equal(t, "2024-01-02 03:04:05", first.CreatedTime)
		assert.Equal(t, "https://i.redd.it/pic1.jpg", first.ImageURL)

		second := posts[1]
		assert.Equal(t, "bbb", second.ID)
		assert.Empty(t, second.Text)
		assert.Empty(t, second.ImageURL)
	})

	t.Run("honors the record limit", func(t *testing.T) {
		t.Parallel()

		src := newTestSource(t, &stubFetcher{html: listingHTML})

		count := 0
		for _, err := range src.FetchPosts(context.Background(), subgrab.FetchOptions{Limit: 1}) {
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 1, count)
	})

	t.Run("propagates fetch failures", func(t *testing.T) {
		t.Parallel()

		src := newTestSource(t, &stubFetcher{err: subgrab.Errorf(subgrab.EUNAVAILABLE, "browser gone")})

		var lastErr error
		for _, err := range src.FetchPosts(context.Background(), subgrab.FetchOptions{}) {
			lastErr = err
		}
		require.Error(t, lastErr)
		assert.Equal(t, subgrab.EUNAVAILABLE, subgrab.ErrorCode(lastErr))
	})
}

func TestSourceFetchComments(t *testing.T) {
	t.Parallel()

	t.Run("extracts the rendered thread", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{html: commentsHTML}
		src := newTestSource(t, fetcher)

		var comments []*subgrab.Comment
		for c, err := range src.FetchComments(context.Background(), "aaa", subgrab.FetchOptions{}) {
			require.NoError(t, err)
			comments = append(comments, c)
		}

		require.Len(t, comments, 2)
		assert.Contains(t, fetcher.lastURL, "/r/golang/comments/aaa/")

		assert.Equal(t, "c1", comments[0].ID)
		assert.Equal(t, "", comments[0].ParentID)
		assert.Equal(t, "aaa", comments[0].PostID)
		assert.Equal(t, "Top level reply", comments[0].Text)

		assert.Equal(t, "c2", comments[1].ID)
		assert.Equal(t, "c1", comments[1].ParentID)
		assert.Equal(t, "https://i.redd.it/pic2.png", comments[1].ImageURL)
	})

	t.Run("rejects empty post ID", func(t *testing.T) {
		t.Parallel()

		src := newTestSource(t, &stubFetcher{})

		for c, err := range src.FetchComments(context.Background(), "", subgrab.FetchOptions{}) {
			assert.Nil(t, c)
			require.Error(t, err)
			assert.Equal(t, subgrab.EINVALID, subgrab.ErrorCode(err))
		}
	})
}
