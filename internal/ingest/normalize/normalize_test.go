package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swipestats-workers/internal/common/anonymize"
	"swipestats-workers/internal/models"
)

func loadFixture(t *testing.T, name string) models.RawExport {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	var raw models.RawExport
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func decode(t *testing.T, doc string) models.RawExport {
	t.Helper()
	var raw models.RawExport
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawExport
		want models.Platform
	}{
		{"tinder usage block", models.RawExport{"Usage": map[string]interface{}{}, "User": map[string]interface{}{}}, models.PlatformTinder},
		{"hinge matches", models.RawExport{"Matches": []interface{}{}}, models.PlatformHinge},
		{"hinge prompts only", models.RawExport{"Prompts": []interface{}{}}, models.PlatformHinge},
		{"usage wins over matches", models.RawExport{"Usage": map[string]interface{}{}, "Matches": []interface{}{}}, models.PlatformTinder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Unrecognized(t *testing.T) {
	for _, raw := range []models.RawExport{nil, {}, {"User": map[string]interface{}{}, "Spotify": 1}} {
		p, err := Normalize(raw)
		assert.Nil(t, p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnrecognizedFormat))

		var unrecognized *UnrecognizedFormatError
		require.True(t, errors.As(err, &unrecognized))
	}

	_, err := Normalize(models.RawExport{"User": map[string]interface{}{}, "Spotify": 1})
	assert.Contains(t, err.Error(), "Spotify, User")
}

func TestNormalize_Tinder(t *testing.T) {
	p, err := Normalize(loadFixture(t, "tinder_export.json"))
	require.NoError(t, err)

	assert.Equal(t, models.PlatformTinder, p.Platform)
	assert.Equal(t, anonymize.ProfileID("tinder", "5d3c0e2f9a7b4c1d8e6f0a12"), p.ProfileID)
	assert.Nil(t, p.Meta)

	require.Len(t, p.Usage, 3)
	assert.Equal(t, models.UsageDay{
		Date: "2023-01-01", AppOpens: 4, SwipeLikes: 10, SwipePasses: 20,
		Matches: 2, MessagesSent: 3, MessagesReceived: 2,
	}, p.Usage[0])
	assert.Equal(t, "2023-01-02", p.Usage[1].Date)
	assert.Equal(t, 1, p.Usage[1].SuperLikes)
	assert.Equal(t, "2023-01-03", p.Usage[2].Date)

	assert.Equal(t, 27, p.Identity.Age)
	assert.Equal(t, models.GenderMale, p.Identity.Gender)
	assert.Equal(t, models.PreferenceFemale, p.Identity.InterestedIn)
	assert.Equal(t, 24, p.Identity.AgeFilterMin)
	assert.Equal(t, 34, p.Identity.AgeFilterMax)
	assert.Equal(t, "Oslo", p.Identity.City)
	assert.Equal(t, "Coffee first.", p.Identity.Bio)
	assert.Equal(t, []string{"Hiking", "Coffee"}, p.Identity.Interests)

	assert.Equal(t, []models.Job{{Title: "Engineer", TitleDisplayed: true, Company: "Acme", CompanyDisplayed: false}}, p.Jobs)
	assert.Equal(t, "Has a graduate degree", p.Education.Level)
	assert.Equal(t, []models.School{{Name: "NTNU", Displayed: true}}, p.Education.Schools)

	require.Len(t, p.Matches, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{p.Matches[0].OrderIndex, p.Matches[1].OrderIndex, p.Matches[2].OrderIndex})
	first := p.Matches[0]
	require.Len(t, first.Messages, 2)
	assert.Equal(t, "First", first.Messages[0].Content)
	assert.Equal(t, "Second", first.Messages[1].Content)
	assert.Equal(t, models.SenderUser, first.Messages[0].Sender)
	assert.Equal(t, time.Date(2023, 1, 1, 20, 0, 0, 0, time.UTC), first.Messages[0].SentAt)
	assert.NotNil(t, p.Matches[2].Messages)
	assert.Empty(t, p.Matches[2].Messages)

	require.Len(t, p.Media, 2)
	assert.Equal(t, "photo", p.Media[0].Type)
	assert.Equal(t, "https://images-ssl.gotinder.com/"+p.ProfileID+"/original_4f1a9c2e.jpeg", p.Media[0].URL)
	assert.Equal(t, "https://images-ssl.gotinder.com/"+p.ProfileID+"/original_77b0d3aa.jpeg", p.Media[1].URL)
	assert.NotNil(t, p.Prompts)
	assert.Empty(t, p.Prompts)
}

func TestNormalize_Hinge(t *testing.T) {
	p, err := Normalize(loadFixture(t, "hinge_export.json"))
	require.NoError(t, err)

	assert.Equal(t, models.PlatformHinge, p.Platform)
	assert.Equal(t, anonymize.ProfileID("hinge", "2021-03-04 10:11:12"), p.ProfileID)

	assert.Equal(t, 29, p.Identity.Age)
	assert.Equal(t, models.GenderFemale, p.Identity.Gender)
	assert.Equal(t, models.PreferenceMale, p.Identity.InterestedIn)
	assert.Equal(t, "Bergen", p.Identity.City)
	assert.Equal(t, "Vestland", p.Identity.Region)
	assert.Equal(t, "NO", p.Identity.Country)

	assert.Equal(t, []models.Job{{Title: "Designer", TitleDisplayed: true, Company: "Studio Nord", CompanyDisplayed: false}}, p.Jobs)
	assert.Equal(t, []models.School{{Name: "UiO", Displayed: true}}, p.Education.Schools)

	require.Len(t, p.Prompts, 1)
	assert.Equal(t, "My simple pleasures", p.Prompts[0].Question)
	require.Len(t, p.Media, 2)
	assert.True(t, p.Media[1].FromSocialMedia)

	require.Len(t, p.Usage, 2)
	assert.Equal(t, models.UsageDay{Date: "2023-01-01", SwipeLikes: 1, Matches: 1, MessagesSent: 1}, p.Usage[0])
	assert.Equal(t, models.UsageDay{Date: "2023-01-02", SwipeLikes: 1, Matches: 1, MessagesSent: 1}, p.Usage[1])

	// like-only interactions are not matches
	require.Len(t, p.Matches, 2)
	chatted := p.Matches[0]
	assert.Equal(t, models.OrderUnknown, chatted.OrderIndex)
	assert.Equal(t, time.Date(2023, 1, 1, 18, 0, 0, 0, time.UTC), chatted.MatchedAt)
	require.Len(t, chatted.Messages, 2)
	assert.Equal(t, "Coffee?", chatted.Messages[0].Content)
	assert.Equal(t, "Hei!", chatted.Messages[1].Content)
	assert.False(t, chatted.Unmatched)

	removed := p.Matches[1]
	assert.True(t, removed.Unmatched)
	assert.Empty(t, removed.Messages)
	assert.NotEqual(t, chatted.MatchID, removed.MatchID)
}

func TestNormalize_DropsRawIdentifiers(t *testing.T) {
	for _, fixture := range []string{"tinder_export.json", "hinge_export.json"} {
		t.Run(fixture, func(t *testing.T) {
			p, err := Normalize(loadFixture(t, fixture))
			require.NoError(t, err)

			out, err := json.Marshal(p)
			require.NoError(t, err)
			for _, secret := range []string{
				"5d3c0e2f9a7b4c1d8e6f0a12", "ola@example.com", "Ola Nordmann", "10.20.30.40",
				"1995-04-12", "2019-07-27", "2021-03-04 10:11:12", "Kari", "Match 1",
			} {
				assert.NotContains(t, string(out), secret)
			}
		})
	}
}

func TestNormalize_VendorIDScrubbedFromValues(t *testing.T) {
	const vendorID = "5d3c0e2f9a7b4c1d8e6f0a12"
	p, err := Normalize(decode(t, `{
		"User": {"_id": "`+vendorID+`", "bio": "find me at `+vendorID+` or x`+vendorID+`"},
		"Usage": {"swipes_likes": {"2023-01-01": 2}},
		"Messages": [{"match_id": "m1", "messages": [{"to": 1, "from": "You", "message": "id:`+vendorID+`", "sent_date": "2023-01-01T20:00:00Z"}]}],
		"Photos": ["https://images-ssl.gotinder.com/`+vendorID+`/original_abc.jpeg"]
	}`))
	require.NoError(t, err)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), vendorID), "only the embedded occurrence survives")
	assert.Contains(t, string(out), "x"+vendorID)
	require.Len(t, p.Media, 1)
	assert.Equal(t, "https://images-ssl.gotinder.com/"+p.ProfileID+"/original_abc.jpeg", p.Media[0].URL)
}

func TestReplaceToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"path segment", "https://cdn/abcdef12/x.jpg", "https://cdn/ID/x.jpg"},
		{"whole value", "abcdef12", "ID"},
		{"repeated", "abcdef12-abcdef12", "ID-ID"},
		{"embedded left", "zabcdef12", "zabcdef12"},
		{"embedded right", "abcdef123", "abcdef123"},
		{"absent", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, replaceToken(tt.in, "abcdef12", "ID"))
		})
	}
}

func TestRedactVendorID_ShortIDsLeftAlone(t *testing.T) {
	p := &models.NormalizedProfile{ProfileID: "pid", Identity: models.Identity{Bio: "a b c"}}
	redactVendorID(p, "a")
	assert.Equal(t, "a b c", p.Identity.Bio)
}

func TestNormalize_HingeMatchesInSameSecondStayDistinct(t *testing.T) {
	doc := `{
		"User": {"account": {"signup_time": "2021-03-04 10:11:12"}},
		"Matches": [
			{"like": [{"timestamp": "2023-01-01 09:00:00"}], "match": [{"timestamp": "2023-01-01 18:00:00"}], "chats": [{"body": "A", "timestamp": "2023-01-01 19:00:00"}]},
			{"like": [{"timestamp": "2023-01-01 09:30:00"}], "match": [{"timestamp": "2023-01-01 18:00:00"}], "chats": [{"body": "B", "timestamp": "2023-01-01 19:00:00"}]},
			{"match": [{"timestamp": "2023-01-01 18:00:00"}]},
			{"match": [{"timestamp": "2023-01-01 18:00:00"}]}
		]
	}`
	p, err := Normalize(decode(t, doc))
	require.NoError(t, err)

	require.Len(t, p.Matches, 4)
	ids := map[string]struct{}{}
	for _, m := range p.Matches {
		ids[m.MatchID] = struct{}{}
		assert.LessOrEqual(t, len(m.Messages), 1)
	}
	assert.Len(t, ids, 4)

	again, err := Normalize(decode(t, doc))
	require.NoError(t, err)
	assert.Equal(t, p.Matches, again.Matches)
}

func TestNormalize_Deterministic(t *testing.T) {
	for _, fixture := range []string{"tinder_export.json", "hinge_export.json"} {
		a, err := Normalize(loadFixture(t, fixture))
		require.NoError(t, err)
		b, err := Normalize(loadFixture(t, fixture))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestNormalize_OptionalFieldsUseSentinels(t *testing.T) {
	p, err := Normalize(decode(t, `{"User": {"_id": "abc", "gender": "Zebra"}, "Usage": {}}`))
	require.NoError(t, err)

	assert.Equal(t, models.AgeUnknown, p.Identity.Age)
	assert.Equal(t, models.GenderUnknown, p.Identity.Gender)
	assert.Equal(t, models.PreferenceUnknown, p.Identity.InterestedIn)
	assert.Equal(t, "", p.Identity.City)
	for name, v := range map[string]interface{}{
		"interests": p.Identity.Interests, "jobs": p.Jobs, "schools": p.Education.Schools,
		"prompts": p.Prompts, "usage": p.Usage, "matches": p.Matches, "media": p.Media,
	} {
		assert.NotNil(t, v, name)
		assert.Empty(t, v, name)
	}

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"media":[]`)
}

func TestNum_Saturates(t *testing.T) {
	assert.Equal(t, math.MaxInt, num(1e300))
	assert.Equal(t, math.MinInt, num(-1e300))
	assert.Equal(t, 0, num(math.NaN()))
	assert.Equal(t, 42, num(42.9))
	assert.Equal(t, math.MaxInt, num(json.Number("1e300")))
	assert.Equal(t, models.AgeUnknown, hingeIdentity(map[string]interface{}{"age": 1e300}, nil, nil).Age)
}

func TestNormalize_TinderVendorIDFallback(t *testing.T) {
	p, err := Normalize(decode(t, `{"User": {"birth_date": "1990-01-01T00:00:00Z", "create_date": "2020-05-05T00:00:00Z"}, "Usage": {}}`))
	require.NoError(t, err)
	assert.Equal(t, anonymize.ProfileID("tinder", "1990-01-01T00:00:00Z|2020-05-05T00:00:00Z"), p.ProfileID)
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		platform  models.Platform
		wantField string
	}{
		{"tinder usage not an object", `{"User": {"_id": "a"}, "Usage": []}`, models.PlatformTinder, "Usage"},
		{"tinder counter not an object", `{"User": {"_id": "a"}, "Usage": {"swipes_likes": [1, 2]}}`, models.PlatformTinder, "Usage.swipes_likes"},
		{"tinder counter out of range", `{"User": {"_id": "a"}, "Usage": {"swipes_likes": {"2023-01-01": 1e300}}}`, models.PlatformTinder, "Usage.swipes_likes.2023-01-01"},
		{"tinder counter above daily bound", `{"User": {"_id": "a"}, "Usage": {"app_opens": {"2023-01-01": 1000001}}}`, models.PlatformTinder, "Usage.app_opens.2023-01-01"},
		{"tinder messages not an array", `{"User": {"_id": "a"}, "Usage": {}, "Messages": {"match_id": "Match 1"}}`, models.PlatformTinder, "Messages"},
		{"tinder no account identifier", `{"User": {"bio": "hi"}, "Usage": {}}`, models.PlatformTinder, "User"},
		{"hinge matches not an array", `{"User": {"account": {"signup_time": "x"}}, "Matches": "none"}`, models.PlatformHinge, "Matches"},
		{"hinge chats not an array", `{"User": {"account": {"signup_time": "x"}}, "Matches": [{"chats": "hi"}]}`, models.PlatformHinge, "Matches.0.chats"},
		{"hinge no account", `{"User": {"profile": {}}, "Matches": []}`, models.PlatformHinge, "User.account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Normalize(decode(t, tt.doc))
			assert.Nil(t, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedField))

			var malformed *MalformedFieldError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.platform, malformed.Platform)
			assert.Equal(t, tt.wantField, malformed.Field)
		})
	}
}

func TestNormalize_UsageKeysOnSameDaySummed(t *testing.T) {
	p, err := Normalize(decode(t, `{
		"User": {"_id": "a"},
		"Usage": {"swipes_likes": {"2023-01-01": 2, "2023-01-01T00:00:00.000Z": 3, "total": 99, "2023-01-02": "4", "2023-01-03": -5}}
	}`))
	require.NoError(t, err)

	require.Len(t, p.Usage, 3)
	assert.Equal(t, 5, p.Usage[0].SwipeLikes)
	assert.Equal(t, 4, p.Usage[1].SwipeLikes)
	assert.Equal(t, 0, p.Usage[2].SwipeLikes)
}

func TestNormalize_TinderMatchOrdering(t *testing.T) {
	p, err := Normalize(decode(t, `{
		"User": {"_id": "a"},
		"Usage": {},
		"Messages": [
			{"match_id": "Unlabelled", "messages": [{"from": "You", "message": "late", "sent_date": "Tue, 03 Jan 2023 10:00:00 GMT"}]},
			{"match_id": "", "messages": [{"from": "You", "message": "early", "sent_date": "Sun, 01 Jan 2023 10:00:00 GMT"}]},
			{"match_id": "Match 10", "messages": []},
			{"match_id": "Match 4", "messages": [{"from": "You", "message": "a", "sent_date": "Sun, 01 Jan 2023 10:00:00 GMT"}]},
			{"match_id": "Match 4", "messages": [{"from": "You", "message": "b", "sent_date": "Mon, 02 Jan 2023 10:00:00 GMT"}]}
		]
	}`))
	require.NoError(t, err)

	require.Len(t, p.Matches, 4)
	assert.Equal(t, 4, p.Matches[0].OrderIndex)
	assert.Len(t, p.Matches[0].Messages, 2)
	assert.Equal(t, 10, p.Matches[1].OrderIndex)
	assert.Equal(t, "early", p.Matches[2].Messages[0].Content)
	assert.Equal(t, "", p.Matches[2].MatchID)
	assert.Equal(t, "late", p.Matches[3].Messages[0].Content)
}

func TestNormalize_MatchIDsScopedToAccount(t *testing.T) {
	a, err := Normalize(decode(t, `{"User": {"_id": "a"}, "Usage": {}, "Messages": [{"match_id": "Match 1", "messages": []}]}`))
	require.NoError(t, err)
	b, err := Normalize(decode(t, `{"User": {"_id": "b"}, "Usage": {}, "Messages": [{"match_id": "Match 1", "messages": []}]}`))
	require.NoError(t, err)
	again, err := Normalize(decode(t, `{"User": {"_id": "a"}, "Usage": {}, "Messages": [{"match_id": "Match 1", "messages": []}]}`))
	require.NoError(t, err)

	assert.NotEqual(t, a.Matches[0].MatchID, b.Matches[0].MatchID)
	assert.Equal(t, a.Matches[0].MatchID, again.Matches[0].MatchID)
}

func TestNormalizeGender(t *testing.T) {
	tests := map[string]models.Gender{
		"M": models.GenderMale, "man": models.GenderMale, "F": models.GenderFemale, "Woman": models.GenderFemale,
		"Non-binary": models.GenderOther, "other": models.GenderOther, "More": models.GenderMore,
		"": models.GenderUnknown, "prefer not to say": models.GenderUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeGender(in), in)
	}
}

func TestNormalizePreference(t *testing.T) {
	assert.Equal(t, models.PreferenceEveryone, normalizePreference("M and F"))
	assert.Equal(t, models.PreferenceEveryone, normalizePreference("Everyone"))
	assert.Equal(t, models.PreferenceFemale, normalizePreference("Women"))
	assert.Equal(t, models.PreferenceUnknown, normalizePreference("?"))
}

func TestAgeAt(t *testing.T) {
	birth := time.Date(1995, 4, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 27, ageAt(birth, time.Date(2023, 4, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, ageAt(birth, time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.AgeUnknown, ageAt(time.Time{}, birth))
	assert.Equal(t, models.AgeUnknown, ageAt(birth, birth.AddDate(-1, 0, 0)))
}
