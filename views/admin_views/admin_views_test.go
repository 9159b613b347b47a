package admin_views

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestLayoutEscapesTitleAndFlash(t *testing.T) {
	html := render(t, Layout("<b>Users</b>", Flash{Type: "error", Message: "<script>x</script>"}, templ.NopComponent))
	assert.Contains(t, html, "ClipPass | &lt;b&gt;Users&lt;/b&gt;")
	assert.Contains(t, html, `<p class="flash-error">&lt;script&gt;x&lt;/script&gt;</p>`)
	assert.NotContains(t, html, "<script>")

	html = render(t, Layout("Admin", Flash{Type: "success", Message: "done"}, templ.NopComponent))
	assert.Contains(t, html, `<p class="flash-success">done</p>`)

	html = render(t, Layout("Admin", Flash{}, templ.NopComponent))
	assert.NotContains(t, html, "flash-")
}

func TestDashboardCounts(t *testing.T) {
	html := render(t, Dashboard([]Section{
		{Name: "users", Title: "Users", Count: 3},
		{Name: "videos", Title: "Videos", Count: -1},
	}))
	assert.Contains(t, html, `<a href="/admin/users">Users</a></td><td>3</td>`)
	assert.Contains(t, html, `<td>n/a</td>`)
}

func TestListPaging(t *testing.T) {
	page := ListPage{
		Name:     "videos",
		Title:    "Videos",
		Columns:  []string{"id", "title"},
		Rows:     [][]string{{"7", "a & b"}},
		Total:    120,
		Page:     2,
		PrevPage: 1,
		NextPage: 3,
	}
	html := render(t, List(page))
	assert.Contains(t, html, "<h1>Videos (120)</h1>")
	assert.Contains(t, html, "<th>id</th><th>title</th>")
	assert.Contains(t, html, "<td>a &amp; b</td>")
	assert.Contains(t, html, `action="/admin/videos/delete/7"`)
	assert.Contains(t, html, `href="/admin/videos?page=1"`)
	assert.Contains(t, html, `href="/admin/videos?page=3"`)
	assert.Contains(t, html, "Page 2")

	page.PrevPage, page.NextPage = 0, 0
	html = render(t, List(page))
	assert.NotContains(t, html, "?page=")
}
