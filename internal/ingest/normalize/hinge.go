package normalize

import (
	"fmt"
	"strings"
	"time"

	"swipestats-workers/internal/common/anonymize"
	"swipestats-workers/internal/models"
)

// normalizeHinge maps the combined Hinge download: User (user.json), Matches (matches.json),
// Prompts (prompts.json) and Media (media.json).
func normalizeHinge(raw models.RawExport) (*models.NormalizedProfile, string, error) {
	user := obj(raw, "User")
	account := obj(user, "account")

	vendorID := str(account, "id")
	if vendorID == "" {
		vendorID = str(account, "signup_time")
	}
	if vendorID == "" {
		return nil, "", &MalformedFieldError{
			Platform: models.PlatformHinge,
			Field:    "User.account",
			Expected: "account identifier (id or signup_time)",
		}
	}

	p := &models.NormalizedProfile{
		ProfileID: anonymize.ProfileID(string(models.PlatformHinge), vendorID),
		Platform:  models.PlatformHinge,
	}

	profile := obj(user, "profile")
	p.Identity = hingeIdentity(profile, obj(user, "preferences"), obj(user, "location"))
	p.Jobs = hingeJobs(profile)
	p.Education = hingeEducation(profile)
	p.Prompts = hingePrompts(arr(raw, "Prompts"))
	p.Media = hingeMedia(arr(raw, "Media"))
	p.Matches, p.Usage = hingeInteractions(p.ProfileID, arr(raw, "Matches"))
	return p, vendorID, nil
}

func hingeIdentity(profile, prefs, location map[string]interface{}) models.Identity {
	age := num(profile["age"])
	if age < 0 || age > 130 {
		age = models.AgeUnknown
	}
	city := str(location, "locality")
	if city == "" {
		city = str(location, "city")
	}
	return models.Identity{
		Age:          age,
		Gender:       normalizeGender(str(profile, "gender")),
		InterestedIn: normalizePreference(str(prefs, "gender_preference")),
		AgeFilterMin: nonNegative(num(prefs["age_min"])),
		AgeFilterMax: nonNegative(num(prefs["age_max"])),
		City:         city,
		Region:       str(location, "admin_area_1"),
		Country:      str(location, "country"),
		Interests:    strs(arr(profile, "interests")),
	}
}

// Hinge keeps one job title and a list of workplaces, each with a profile-level displayed flag.
func hingeJobs(profile map[string]interface{}) []models.Job {
	jobs := []models.Job{}
	title := str(profile, "job_title")
	titleShown := boolean(profile, "job_title_displayed")
	companyShown := boolean(profile, "workplaces_displayed")
	workplaces := strs(arr(profile, "workplaces"))

	if len(workplaces) == 0 {
		if title != "" {
			jobs = append(jobs, models.Job{Title: title, TitleDisplayed: titleShown})
		}
		return jobs
	}
	for i, w := range workplaces {
		job := models.Job{Company: w, CompanyDisplayed: companyShown}
		if i == 0 {
			job.Title, job.TitleDisplayed = title, titleShown && title != ""
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func hingeEducation(profile map[string]interface{}) models.Education {
	edu := models.Education{
		Level:   str(profile, "education_attained"),
		Schools: []models.School{},
	}
	shown := boolean(profile, "schools_displayed")
	for _, name := range strs(arr(profile, "schools")) {
		edu.Schools = append(edu.Schools, models.School{Name: name, Displayed: shown})
	}
	return edu
}

func hingePrompts(entries []interface{}) []models.Prompt {
	prompts := []models.Prompt{}
	for _, e := range objects(entries) {
		q, a := str(e, "prompt"), str(e, "text")
		if q == "" && a == "" {
			continue
		}
		prompts = append(prompts, models.Prompt{
			Question:  q,
			Answer:    a,
			CreatedAt: parseTime(str(e, "created")),
		})
	}
	return prompts
}

func hingeMedia(entries []interface{}) []models.Media {
	media := []models.Media{}
	for _, e := range objects(entries) {
		url := str(e, "url")
		if url == "" {
			continue
		}
		kind := str(e, "type")
		if kind == "" {
			kind = "photo"
		}
		media = append(media, models.Media{
			Type:            kind,
			URL:             url,
			Caption:         str(e, "prompt"),
			FromSocialMedia: boolean(e, "from_social_media"),
		})
	}
	return media
}

// hingeInteractions turns matches.json into matches and a daily usage series. Every entry is one
// interaction with another member; only entries with a match event or a chat are matches. Likes,
// matches and chats are counted on the day they happened. Hinge does not export passes.
func hingeInteractions(profileID string, entries []interface{}) ([]models.Match, []models.UsageDay) {
	matches := []models.Match{}
	byID := map[string]int{}
	derived := map[string]int{}
	days := map[string]*models.UsageDay{}

	day := func(t time.Time) *models.UsageDay {
		if t.IsZero() {
			return nil
		}
		date := t.Format(models.DateLayout)
		d, ok := days[date]
		if !ok {
			d = &models.UsageDay{Date: date}
			days[date] = d
		}
		return d
	}

	for _, e := range objects(entries) {
		var likedAt time.Time
		for _, like := range objects(arr(e, "like")) {
			t := parseTime(str(like, "timestamp"))
			if d := day(t); d != nil {
				d.SwipeLikes++
			}
			if !t.IsZero() && (likedAt.IsZero() || t.Before(likedAt)) {
				likedAt = t
			}
		}

		var matchedAt time.Time
		matchEvents := objects(arr(e, "match"))
		for _, m := range matchEvents {
			t := parseTime(str(m, "timestamp"))
			if d := day(t); d != nil {
				d.Matches++
			}
			if !t.IsZero() && (matchedAt.IsZero() || t.Before(matchedAt)) {
				matchedAt = t
			}
		}

		chats := objects(arr(e, "chats"))
		msgs := make([]models.Message, 0, len(chats))
		for _, c := range chats {
			sent := parseTime(str(c, "timestamp"))
			if d := day(sent); d != nil {
				d.MessagesSent++
			}
			msgs = append(msgs, models.Message{
				Sender:  models.SenderUser,
				SentAt:  sent,
				Content: str(c, "body"),
			})
		}

		if len(matchEvents) == 0 && len(chats) == 0 {
			continue
		}

		match := models.Match{
			OrderIndex: models.OrderUnknown,
			MatchedAt:  matchedAt,
			Unmatched:  len(arr(e, "block")) > 0,
			Messages:   msgs,
		}
		key := str(e, "id")
		if key == "" {
			// Entries without an id are told apart by their event times, then by their
			// position among entries with the same times.
			key = eventKey(matchedAt, likedAt, match.FirstMessageAt())
			if key != "" {
				derived[key]++
				if n := derived[key]; n > 1 {
					key = fmt.Sprintf("%s#%d", key, n)
				}
			}
		}
		match.MatchID = scopedMatchID(profileID, key)

		if i, seen := byID[match.MatchID]; seen && match.MatchID != "" {
			matches[i].Messages = models.UnionMessages(matches[i].Messages, msgs)
			matches[i].Unmatched = matches[i].Unmatched || match.Unmatched
			continue
		}
		if match.MatchID != "" {
			byID[match.MatchID] = len(matches)
		}
		matches = append(matches, match)
	}

	usage := make([]models.UsageDay, 0, len(days))
	for _, d := range days {
		usage = append(usage, *d)
	}
	models.SortUsage(usage)
	return matches, usage
}

func eventKey(times ...time.Time) string {
	parts := make([]string, 0, len(times))
	for _, t := range times {
		if !t.IsZero() {
			parts = append(parts, t.Format(time.RFC3339Nano))
		}
	}
	return strings.Join(parts, "|")
}
