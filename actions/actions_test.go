package actions

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

func TestMain(m *testing.M) {
	db, err := common.InitTestStore()
	if err != nil {
		panic(err)
	}

	code := m.Run()
	db.Close()
	os.Exit(code)
}

func TestDefaultCatalog(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	for _, name := range []string{"hug", "pat", "kiss", "slap", "cuddle", "poke", "bite", "bonk", "highfive", "wave", "cry", "dance", "blush", "smile"} {
		a := c.Get(name)
		require.NotNil(t, a, name)
		assert.NotEmpty(t, a.GIFs, name)
	}

	assert.True(t, c.Get("cry").SelfOnly)
	assert.False(t, c.Get("hug").SelfOnly)
	assert.Equal(t, 0xf7a8b8, c.Get("hug").Color)
}

func TestActionText(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	hug := c.Get("hug")
	assert.Equal(t, "<@1> hugs <@2>", hug.Text("<@1>", "<@2>"))
	assert.Equal(t, "<@1> hugs themselves", hug.Text("<@1>", ""))

	// self only actions ignore the target
	assert.Equal(t, "<@1> is crying", c.Get("cry").Text("<@1>", "<@2>"))
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := ParseCatalog([]byte("- name: hug\n  self: a\n  other: b\n- name: HUG\n  self: a\n  other: b\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("- name: hug\n  self: a\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("- self: a\n"))
	assert.Error(t, err)

	c, err := ParseCatalog([]byte("- name: Boop\n  self: a\n  other: b\n"))
	require.NoError(t, err)
	assert.Equal(t, "boop", c["boop"].Noun)
}

func TestCatalogReloadKeepsOldOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: boop\n  self: \"{{author}} boops\"\n  other: \"{{author}} boops {{target}}\"\n"), 0o644))

	c, err := NewCatalog(path)
	require.NoError(t, err)
	require.NotNil(t, c.Get("boop"))

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	assert.Error(t, c.Reload())
	assert.NotNil(t, c.Get("boop"))
}

func TestCounters(t *testing.T) {
	n, err := IncrCounters("1", "10", "20", "hug")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = IncrCounters("1", "11", "20", "hug")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	target, err := GetCounters("1", "20")
	require.NoError(t, err)
	assert.Equal(t, 2, target.Received["hug"])
	assert.Empty(t, target.Given)

	author, err := GetCounters("1", "10")
	require.NoError(t, err)
	assert.Equal(t, 1, author.Given["hug"])

	// other guilds are separate
	other, err := GetCounters("2", "20")
	require.NoError(t, err)
	assert.Zero(t, other.Received["hug"])

	require.NoError(t, (&Plugin{}).RemoveGuildData("1"))
	target, err = GetCounters("1", "20")
	require.NoError(t, err)
	assert.Empty(t, target.Received)
}

type staticGIFs struct {
	url string
	err error
}

func (s staticGIFs) RandomGIF(ctx context.Context, query string) (string, error) {
	return s.url, s.err
}

func actionData(guildID string, author *discordgo.User, target *discordgo.Member) *dcmd.Data {
	return &dcmd.Data{
		Author:  author,
		GuildID: guildID,
		Args:    []*dcmd.ParsedArg{{Value: target}},
	}
}

func TestRunAction(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)
	p := &Plugin{Catalog: c, GIFs: staticGIFs{url: "https://example.com/hug.gif"}}

	author := &discordgo.User{ID: "100", Username: "a"}
	target := &discordgo.Member{User: &discordgo.User{ID: "200", Username: "b"}}

	resp, err := p.runAction("hug")(actionData("5", author, target))
	require.NoError(t, err)
	embed := resp.(*discordgo.MessageEmbed)
	assert.Equal(t, "<@100> hugs <@200>", embed.Description)
	assert.Equal(t, "https://example.com/hug.gif", embed.Image.URL)
	assert.Equal(t, "That's their 1st hug", embed.Footer.Text)

	resp, err = p.runAction("hug")(actionData("5", author, target))
	require.NoError(t, err)
	assert.Equal(t, "That's their 2nd hug", resp.(*discordgo.MessageEmbed).Footer.Text)

	// targeting yourself is a self action and isn't counted
	self := &discordgo.Member{User: author}
	resp, err = p.runAction("hug")(actionData("5", author, self))
	require.NoError(t, err)
	embed = resp.(*discordgo.MessageEmbed)
	assert.Equal(t, "<@100> hugs themselves", embed.Description)
	assert.Nil(t, embed.Footer)

	counters, err := GetCounters("5", "100")
	require.NoError(t, err)
	assert.Zero(t, counters.Received["hug"])
}

func TestRunActionFallsBackToStaticGIF(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)
	p := &Plugin{Catalog: c, GIFs: staticGIFs{err: errors.New("down")}}

	resp, err := p.runAction("dance")(&dcmd.Data{Author: &discordgo.User{ID: "1"}, GuildID: "5"})
	require.NoError(t, err)
	embed := resp.(*discordgo.MessageEmbed)
	assert.Contains(t, c.Get("dance").GIFs, embed.Image.URL)
	assert.Equal(t, "<@1> is dancing", embed.Description)
}

func newMockedTenor(t *testing.T) *TenorClient {
	client := NewTenorClient("key")
	httpmock.ActivateNonDefault(client.HTTP)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestTenorRandomGIF(t *testing.T) {
	client := newMockedTenor(t)

	httpmock.RegisterResponder(http.MethodGet, TenorSearchURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "anime hug", req.URL.Query().Get("q"))
		assert.Equal(t, "true", req.URL.Query().Get("random"))
		assert.Equal(t, "1", req.URL.Query().Get("limit"))
		return httpmock.NewStringResponse(200, `{"results":[{"media_formats":{"gif":{"url":"https://media.tenor.com/x.gif"}}}]}`), nil
	})

	url, err := client.RandomGIF(context.Background(), "anime hug")
	require.NoError(t, err)
	assert.Equal(t, "https://media.tenor.com/x.gif", url)
}

func TestTenorRetriesServerErrors(t *testing.T) {
	client := newMockedTenor(t)

	httpmock.RegisterResponder(http.MethodGet, TenorSearchURL, httpmock.ResponderFromMultipleResponses([]*http.Response{
		httpmock.NewStringResponse(503, "unavailable"),
		httpmock.NewStringResponse(200, `{"results":[{"media_formats":{"tinygif":{"url":"https://media.tenor.com/y.gif"}}}]}`),
	}))

	url, err := client.RandomGIF(context.Background(), "anime pat")
	require.NoError(t, err)
	assert.Equal(t, "https://media.tenor.com/y.gif", url)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestTenorDoesNotRetryClientErrors(t *testing.T) {
	client := newMockedTenor(t)
	httpmock.RegisterResponder(http.MethodGet, TenorSearchURL, httpmock.NewStringResponder(403, "bad key"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, err := client.RandomGIF(ctx, "anime pat")
	var status tenorStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, tenorStatusError(403), status)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestTenorNoResults(t *testing.T) {
	client := newMockedTenor(t)
	httpmock.RegisterResponder(http.MethodGet, TenorSearchURL, httpmock.NewStringResponder(200, `{"results":[]}`))

	_, err := client.RandomGIF(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrNoGIF)
}
