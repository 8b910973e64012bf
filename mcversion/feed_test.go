package mcversion

import (
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testManifestURL = "http://mc.test/manifest"
	testJiraURL     = "http://mc.test/jira"
)

type sentMessage struct {
	source  string
	content string
}

func newTestPlugin() (*Plugin, *[]sentMessage) {
	sent := &[]sentMessage{}

	p := &Plugin{
		manifestURL: testManifestURL,
		jiraURL:     testJiraURL,
	}
	p.send = func(channelIDs []string, source, content string) {
		*sent = append(*sent, sentMessage{source: source, content: content})
	}

	return p, sent
}

func registerManifest(t *testing.T, manifest versionManifest) {
	body, err := json.MarshalToString(manifest)
	require.NoError(t, err)
	httpmock.RegisterResponder("GET", testManifestURL, httpmock.NewStringResponder(200, body))
}

func registerJira(t *testing.T, versions []JiraVersion) {
	body, err := json.MarshalToString(versions)
	require.NoError(t, err)
	httpmock.RegisterResponder("GET", testJiraURL, httpmock.NewStringResponder(200, body))
}

func baseManifest() versionManifest {
	return versionManifest{
		Latest: LatestVersions{Release: "1.20", Snapshot: "23w31a"},
		Versions: []MinecraftVersion{
			{ID: "1.20", Type: "release"},
		},
	}
}

func baseJira() []JiraVersion {
	return []JiraVersion{
		{ID: "1", Name: "1.19.4"},
		{ID: "2", Name: "1.20"},
	}
}

func TestFirstFetchBaselinesSilently(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, sent := newTestPlugin()
	registerManifest(t, baseManifest())
	registerJira(t, baseJira())

	require.NoError(t, p.CheckVersions())

	assert.Empty(t, *sent, "baseline pass should not announce anything")
	assert.Equal(t, baseManifest().Versions, p.versions)
	assert.Equal(t, baseJira(), p.jiraVersions)
	assert.Equal(t, "1.20", p.Latest().Release)
}

func TestUnchangedFeedsNeverReannounce(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, sent := newTestPlugin()
	registerManifest(t, baseManifest())
	registerJira(t, baseJira())

	for i := 0; i < 5; i++ {
		require.NoError(t, p.CheckVersions())
	}

	assert.Empty(t, *sent)
}

func TestNewReleaseAnnouncedOnce(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, sent := newTestPlugin()
	registerManifest(t, baseManifest())
	registerJira(t, baseJira())
	require.NoError(t, p.CheckVersions())

	updated := versionManifest{
		Latest: LatestVersions{Release: "1.20.1", Snapshot: "23w31a"},
		Versions: []MinecraftVersion{
			{ID: "1.20.1", Type: "release"},
			{ID: "1.20", Type: "release"},
		},
	}
	registerManifest(t, updated)
	require.NoError(t, p.CheckVersions())

	require.Len(t, *sent, 1)
	assert.Equal(t, "mcversion", (*sent)[0].source)
	assert.Contains(t, (*sent)[0].content, "1.20.1")

	// cache replaced wholesale with this poll's data
	assert.Equal(t, updated.Versions, p.versions)
	assert.Equal(t, "1.20.1", p.Latest().Release)

	// and the same data again stays quiet
	require.NoError(t, p.CheckVersions())
	assert.Len(t, *sent, 1)
}

func TestMultipleNewVersionsAnnounceOnlyFirst(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, sent := newTestPlugin()
	registerManifest(t, baseManifest())
	registerJira(t, baseJira())
	require.NoError(t, p.CheckVersions())

	registerManifest(t, versionManifest{
		Latest: LatestVersions{Release: "1.20.2", Snapshot: "23w33a"},
		Versions: []MinecraftVersion{
			{ID: "1.20.2", Type: "release"},
			{ID: "23w33a", Type: "snapshot"},
			{ID: "1.20", Type: "release"},
		},
	})
	require.NoError(t, p.CheckVersions())

	// both new entries were absorbed but only the first got announced
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].content, "1.20.2")

	require.NoError(t, p.CheckVersions())
	assert.Len(t, *sent, 1, "absorbed entry retriggered an announcement")
}

func TestSnapshotAnnouncement(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, sent := newTestPlugin()
	registerManifest(t, baseManifest())
	registerJira(t, baseJira())
	require.NoError(t, p.CheckVersions())

	registerManifest(t, versionManifest{
		Latest: LatestVersions{Release: "1.20", Snapshot: "23w32a"},
		Versions: []MinecraftVersion{
			{ID: "23w32a", Type: "snapshot"},
			{ID: "1.20", Type: "release"},
		},
	})
	require.NoError(t, p.CheckVersions())

	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].content, "snapshot")
	assert.Contains(t, (*sent)[0].content, "23w32a")
}

func TestFutureVersionNotAnnounced(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, sent := newTestPlugin()
	registerManifest(t, baseManifest())
	registerJira(t, baseJira())
	require.NoError(t, p.CheckVersions())

	withFuture := append(baseJira(), JiraVersion{ID: "3", Name: "1.21 (Future Version)"})
	registerJira(t, withFuture)
	require.NoError(t, p.CheckVersions())

	assert.Empty(t, *sent, "placeholder version was announced")
	assert.Equal(t, withFuture, p.jiraVersions, "cache should be replaced wholesale, placeholder included")

	// a real version alongside the placeholder still gets through
	registerJira(t, append(withFuture, JiraVersion{ID: "4", Name: "1.20.1"}))
	require.NoError(t, p.CheckVersions())

	require.Len(t, *sent, 1)
	assert.Equal(t, "mojira", (*sent)[0].source)
	assert.Contains(t, (*sent)[0].content, "1.20.1")
}

func TestReentrancyGuard(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, _ := newTestPlugin()
	registerManifest(t, baseManifest())
	registerJira(t, baseJira())

	p.mu.Lock()
	p.checking = true
	p.mu.Unlock()

	assert.Equal(t, ErrCheckInProgress, p.CheckVersions())

	p.mu.Lock()
	p.checking = false
	p.mu.Unlock()

	assert.NoError(t, p.CheckVersions())
}

func TestManifestStatePersistedWhenJiraFails(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	saved := make(map[string]int)
	orig := saveJSONKey
	saveJSONKey = func(key string, v interface{}) { saved[key]++ }
	defer func() { saveJSONKey = orig }()

	p, sent := newTestPlugin()
	registerManifest(t, baseManifest())
	httpmock.RegisterResponder("GET", testJiraURL, httpmock.NewStringResponder(500, "down"))

	require.Error(t, p.CheckVersions())
	assert.Empty(t, *sent)

	// the manifest side reached the store even though the pass as a
	// whole failed, a restart now will not reload a stale snapshot
	assert.Equal(t, 1, saved[redisKeyVersions])
	assert.Equal(t, 1, saved[redisKeyLatest])
	assert.Zero(t, saved[redisKeyJira])
}

func TestStopHandoffBeforeFirstPoll(t *testing.T) {
	p := newPlugin()
	require.NotNil(t, p.Stop, "stop channel must exist before the poller starts")

	p.StartFeed()

	wg := new(sync.WaitGroup)
	wg.Add(1)
	p.StopFeed(wg)
	wg.Wait()
}

func TestFetchFailureSurfacesAndRecovers(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, sent := newTestPlugin()
	httpmock.RegisterResponder("GET", testManifestURL, httpmock.NewStringResponder(500, "nope"))
	registerJira(t, baseJira())

	err := p.CheckVersions()
	require.Error(t, err)
	assert.Empty(t, *sent)

	// guard flag was cleared, the next pass runs fine
	registerManifest(t, baseManifest())
	require.NoError(t, p.CheckVersions())
}
