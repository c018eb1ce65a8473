package normalize

import (
	"sort"
	"strconv"
	"strings"

	"swipestats-workers/internal/common/anonymize"
	"swipestats-workers/internal/models"
)

// Tinder daily counters, keyed by date inside the Usage block.
var tinderCounters = map[string]func(d *models.UsageDay, n int){
	"app_opens":         func(d *models.UsageDay, n int) { d.AppOpens += n },
	"swipes_likes":      func(d *models.UsageDay, n int) { d.SwipeLikes += n },
	"swipes_passes":     func(d *models.UsageDay, n int) { d.SwipePasses += n },
	"superlikes":        func(d *models.UsageDay, n int) { d.SuperLikes += n },
	"matches":           func(d *models.UsageDay, n int) { d.Matches += n },
	"messages_sent":     func(d *models.UsageDay, n int) { d.MessagesSent += n },
	"messages_received": func(d *models.UsageDay, n int) { d.MessagesReceived += n },
}

func normalizeTinder(raw models.RawExport) (*models.NormalizedProfile, string, error) {
	user := obj(raw, "User")

	vendorID := tinderVendorID(user)
	if vendorID == "" {
		return nil, "", &MalformedFieldError{
			Platform: models.PlatformTinder,
			Field:    "User",
			Expected: "account identifier (_id, or birth_date with create_date)",
		}
	}

	p := &models.NormalizedProfile{
		ProfileID: anonymize.ProfileID(string(models.PlatformTinder), vendorID),
		Platform:  models.PlatformTinder,
	}
	usage, err := tinderUsage(obj(raw, "Usage"))
	if err != nil {
		return nil, "", err
	}
	p.Usage = usage

	var lastDay string
	for _, d := range p.Usage {
		if d.Date > lastDay {
			lastDay = d.Date
		}
	}
	p.Identity = tinderIdentity(user, lastDay)
	p.Jobs = tinderJobs(user)
	p.Education = tinderEducation(user)
	p.Matches = tinderMatches(p.ProfileID, arr(raw, "Messages"))
	p.Media = tinderMedia(arr(raw, "Photos"))
	p.Prompts = []models.Prompt{}
	return p, vendorID, nil
}

func tinderVendorID(user map[string]interface{}) string {
	if id := str(user, "_id"); id != "" {
		return id
	}
	birth, created := str(user, "birth_date"), str(user, "create_date")
	if birth == "" || created == "" {
		return ""
	}
	return birth + "|" + created
}

// maxDailyCount bounds a single Tinder daily counter. Larger values are corrupt, not usage.
const maxDailyCount = 1_000_000

func tinderUsage(usage map[string]interface{}) ([]models.UsageDay, error) {
	counters := make([]string, 0, len(tinderCounters))
	for c := range tinderCounters {
		counters = append(counters, c)
	}
	sort.Strings(counters)

	byDate := map[string]*models.UsageDay{}
	for _, counter := range counters {
		values := obj(usage, counter)
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			date := usageDate(key)
			if date == "" {
				continue
			}
			n := nonNegative(num(values[key]))
			if n > maxDailyCount {
				return nil, &MalformedFieldError{
					Platform: models.PlatformTinder,
					Field:    "Usage." + counter + "." + key,
					Expected: "daily count between 0 and " + strconv.Itoa(maxDailyCount),
				}
			}
			day, ok := byDate[date]
			if !ok {
				day = &models.UsageDay{Date: date}
				byDate[date] = day
			}
			tinderCounters[counter](day, n)
		}
	}

	out := make([]models.UsageDay, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	models.SortUsage(out)
	return out, nil
}

func tinderIdentity(user map[string]interface{}, lastDay string) models.Identity {
	city := obj(user, "city")
	id := models.Identity{
		Age:          ageAt(parseTime(str(user, "birth_date")), parseTime(lastDay)),
		Gender:       normalizeGender(str(user, "gender")),
		InterestedIn: normalizePreference(str(user, "interested_in")),
		AgeFilterMin: nonNegative(num(user["age_filter_min"])),
		AgeFilterMax: nonNegative(num(user["age_filter_max"])),
		City:         str(city, "name"),
		Region:       str(city, "region"),
		Country:      str(user, "country"),
		Bio:          str(user, "bio"),
		Interests:    strs(arr(user, "user_interests")),
	}
	if id.InterestedIn == models.PreferenceUnknown {
		id.InterestedIn = normalizePreference(str(user, "gender_filter"))
	}
	if len(id.Interests) == 0 {
		id.Interests = strs(arr(user, "interests"))
	}
	return id
}

// Tinder jobs are [{"title": {"name", "displayed"}, "company": {"name", "displayed"}}].
func tinderJobs(user map[string]interface{}) []models.Job {
	jobs := []models.Job{}
	for _, j := range objects(arr(user, "jobs")) {
		title, company := obj(j, "title"), obj(j, "company")
		job := models.Job{
			Title:            str(title, "name"),
			TitleDisplayed:   boolean(title, "displayed"),
			Company:          str(company, "name"),
			CompanyDisplayed: boolean(company, "displayed"),
		}
		if job.Title == "" && job.Company == "" {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func tinderEducation(user map[string]interface{}) models.Education {
	edu := models.Education{
		Level:   str(user, "education"),
		Schools: []models.School{},
	}
	if edu.Level == "" {
		edu.Level = str(user, "education_level")
	}
	for _, s := range arr(user, "schools") {
		switch t := s.(type) {
		case map[string]interface{}:
			if name := str(t, "name"); name != "" {
				edu.Schools = append(edu.Schools, models.School{Name: name, Displayed: boolean(t, "displayed")})
			}
		case string:
			if name := strings.TrimSpace(t); name != "" {
				edu.Schools = append(edu.Schools, models.School{Name: name})
			}
		}
	}
	return edu
}

// tinderMatches reads the Messages block: one entry per match labelled "Match N", holding the
// messages the user sent. Repeated labels fold into one match.
func tinderMatches(profileID string, entries []interface{}) []models.Match {
	byID := map[string]int{}
	matches := []models.Match{}

	for _, e := range objects(entries) {
		label := str(e, "match_id")
		order := tinderOrder(e, label)

		msgs := make([]models.Message, 0)
		for _, m := range objects(arr(e, "messages")) {
			msgs = append(msgs, models.Message{
				Sender:  tinderSender(str(m, "from")),
				SentAt:  parseTime(str(m, "sent_date")),
				Content: str(m, "message"),
				Type:    str(m, "type"),
			})
		}

		id := scopedMatchID(profileID, label)
		if i, seen := byID[id]; seen && id != "" {
			matches[i].Messages = models.UnionMessages(matches[i].Messages, msgs)
			continue
		}
		if id != "" {
			byID[id] = len(matches)
		}
		matches = append(matches, models.Match{
			MatchID:    id,
			OrderIndex: order,
			Messages:   msgs,
		})
	}
	return matches
}

func tinderOrder(entry map[string]interface{}, label string) int {
	if _, ok := entry["order"]; ok {
		if n := num(entry["order"]); n >= 0 {
			return n
		}
	}
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return models.OrderUnknown
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || n < 0 {
		return models.OrderUnknown
	}
	return n
}

func tinderSender(from string) models.Sender {
	if strings.EqualFold(from, "you") || from == "" {
		return models.SenderUser
	}
	return models.SenderMatch
}

// Photos are either URL strings or objects with a url.
func tinderMedia(photos []interface{}) []models.Media {
	media := []models.Media{}
	for _, ph := range photos {
		switch t := ph.(type) {
		case string:
			if url := strings.TrimSpace(t); url != "" {
				media = append(media, models.Media{Type: "photo", URL: url})
			}
		case map[string]interface{}:
			url := str(t, "url")
			if url == "" {
				continue
			}
			kind := str(t, "type")
			if kind == "" {
				kind = "photo"
			}
			media = append(media, models.Media{Type: kind, URL: url, Caption: str(t, "caption")})
		}
	}
	return media
}
